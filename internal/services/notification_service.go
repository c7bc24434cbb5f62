package services

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"costwise/internal/config"
	"costwise/internal/logger"
)

// emailNotificationService delivers batch-completion and budget-threshold
// alerts over SMTP. All methods are fire-and-forget: delivery failures are
// logged, never returned, so a dead mail server cannot fail a posting run.
type emailNotificationService struct {
	cfg *config.Config
	log *zap.SugaredLogger
}

// NewNotificationService creates a NotificationServicer backed by SMTP.
// When SMTP is disabled in the config, events are only logged.
func NewNotificationService(cfg *config.Config) NotificationServicer {
	return &emailNotificationService{
		cfg: cfg,
		log: logger.Named("notify"),
	}
}

func (s *emailNotificationService) BatchCompleted(batchID, sourceCode string, total decimal.Decimal, lineCount int) {
	s.log.Infow("allocation batch completed",
		"batch_id", batchID,
		"source", sourceCode,
		"total", total.String(),
		"lines", lineCount,
	)
	subject := fmt.Sprintf("Allocation batch %s completed", batchID)
	body := fmt.Sprintf(
		"Allocation batch %s for %s has completed.\n\nTotal allocated: %s\nJournal lines: %d\n",
		batchID, sourceCode, total.StringFixed(2), lineCount,
	)
	s.send(subject, body)
}

func (s *emailNotificationService) BudgetThresholdExceeded(util *BudgetUtilization) {
	s.log.Warnw("budget threshold exceeded",
		"cost_center_id", util.CostCenterID,
		"fiscal_year", util.FiscalYear,
		"period_month", util.PeriodMonth,
		"utilization", util.Utilization.String(),
	)
	subject := fmt.Sprintf("Budget alert: cost center %s at %s%%", util.CostCenterID, util.Utilization.StringFixed(2))
	body := fmt.Sprintf(
		"Cost center %s has used %s%% of its %d-%02d budget.\n\nBudget: %s\nActual: %s\n",
		util.CostCenterID, util.Utilization.StringFixed(2),
		util.FiscalYear, util.PeriodMonth,
		util.Budget.StringFixed(2), util.Actual.StringFixed(2),
	)
	s.send(subject, body)
}

func (s *emailNotificationService) send(subject, body string) {
	if !s.cfg.SMTPEnabled || s.cfg.AlertEmail == "" {
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.SMTPFrom)
	m.SetHeader("To", s.cfg.AlertEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		s.log.Errorw("failed to send notification email", "subject", subject, "error", err)
	}
}

// noopNotificationService swallows every event. Used by tests and as the
// wiring default when no notifier is configured.
type noopNotificationService struct{}

// NewNoopNotificationService creates a NotificationServicer that does
// nothing.
func NewNoopNotificationService() NotificationServicer {
	return noopNotificationService{}
}

func (noopNotificationService) BatchCompleted(string, string, decimal.Decimal, int) {}

func (noopNotificationService) BudgetThresholdExceeded(*BudgetUtilization) {}
