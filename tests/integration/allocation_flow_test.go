package integration

import (
	"fmt"
	"net/http"
	"testing"
)

// createPercentageRule creates a draft percentage rule through the API and
// returns its ID.
func createPercentageRule(t *testing.T, app *testApp, token, code, sourceID string, targets map[string]string) string {
	t.Helper()

	targetJSON := ""
	for id, pct := range targets {
		if targetJSON != "" {
			targetJSON += ","
		}
		targetJSON += fmt.Sprintf(`{"target_cost_center_id":%q,"percentage":%q}`, id, pct)
	}
	body := fmt.Sprintf(`{"code":%q,"name":"Rule %s","source_cost_center_id":%q,"basis":"percentage","effective_date":"2026-01-01T00:00:00Z","targets":[%s]}`,
		code, code, sourceID, targetJSON)
	rec := app.request("POST", "/api/v1/allocation-rules", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["rule"].(map[string]interface{})["id"].(string)
}

// postMaterialCost posts a supplies cost against the cost center.
func postMaterialCost(t *testing.T, app *testApp, token, costCenterID, amount, date string) {
	t.Helper()

	body := fmt.Sprintf(`{"cost_center_id":%q,"amount":%q,"date":%q,"reference_type":"invoice","reference_id":"INV-1","description":"supplies"}`,
		costCenterID, amount, date)
	rec := app.request("POST", "/api/v1/direct-costs/material", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("material cost failed: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAllocationFlow_ApproveAndExecute(t *testing.T) {
	app := setupApp(t)
	authorToken, _, _ := app.registerUser(t, "author@hospital.test", "password123")
	approverToken, _, _ := app.registerUser(t, "approver@hospital.test", "password123")

	facilitiesID := app.createCostCenter(t, authorToken, "FAC", "non_medical", nil)
	icuID := app.createCostCenter(t, authorToken, "ICU", "medical", nil)
	labID := app.createCostCenter(t, authorToken, "LAB", "medical", nil)

	ruleID := createPercentageRule(t, app, authorToken, "FAC-SPLIT", facilitiesID,
		map[string]string{icuID: "60", labID: "40"})

	// Draft rules cannot be executed
	rec := app.request("POST", "/api/v1/allocation-rules/"+ruleID+"/execute?period_start=2026-03-01&period_end=2026-03-31", "", authorToken)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for draft rule, got %d: %s", rec.Code, rec.Body.String())
	}
	assertErrorCode(t, rec, "STATE_TRANSITION")

	// Submit, then approval by the author is rejected
	rec = app.request("POST", "/api/v1/allocation-rules/"+ruleID+"/submit", "", authorToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request("POST", "/api/v1/allocation-rules/"+ruleID+"/approve", "", authorToken)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for self-approval, got %d: %s", rec.Code, rec.Body.String())
	}

	// A second user approves
	rec = app.request("POST", "/api/v1/allocation-rules/"+ruleID+"/approve", "", approverToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve failed: %d %s", rec.Code, rec.Body.String())
	}
	rule := parseJSON(t, rec)["rule"].(map[string]interface{})
	if rule["approval_status"] != "approved" {
		t.Errorf("expected approved status, got %v", rule["approval_status"])
	}

	// Fund the source cost center and execute for March
	postMaterialCost(t, app, authorToken, facilitiesID, "1000", "2026-03-10T00:00:00Z")
	rec = app.request("POST", "/api/v1/allocation-rules/"+ruleID+"/execute?period_start=2026-03-01&period_end=2026-03-31", "", authorToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("execute failed: %d %s", rec.Code, rec.Body.String())
	}
	batch := parseJSON(t, rec)["batch"].(map[string]interface{})
	batchID := batch["batch_id"].(string)
	if batch["line_count"].(float64) != 2 {
		t.Errorf("expected 2 journal lines, got %v", batch["line_count"])
	}
	assertDecimal(t, batch["total_amount"], "1000")

	// Journal lines carry the 60/40 split and sum back to the source amount
	rec = app.request("GET", "/api/v1/allocation-batches/"+batchID, "", authorToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("get batch failed: %d %s", rec.Code, rec.Body.String())
	}
	lines := parseJSON(t, rec)["lines"].([]interface{})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	amounts := map[string]string{}
	for _, l := range lines {
		line := l.(map[string]interface{})
		amounts[line["target_cost_center_id"].(string)] = line["allocated_amount"].(string)
	}
	assertDecimal(t, amounts[icuID], "600")
	assertDecimal(t, amounts[labID], "400")

	// The allocated cost lands on the target as spend
	rec = app.request("POST", "/api/v1/budgets",
		fmt.Sprintf(`{"cost_center_id":%q,"fiscal_year":2026,"period_month":3,"category":"overhead","amount":"1000"}`, icuID), authorToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create budget failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request("GET", fmt.Sprintf("/api/v1/budgets/utilization?cost_center_id=%s&fiscal_year=2026&period_month=3", icuID), "", authorToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("utilization failed: %d %s", rec.Code, rec.Body.String())
	}
	util := parseJSON(t, rec)["utilization"].(map[string]interface{})
	assertDecimal(t, util["actual"], "600")
}

func TestAllocationFlow_RejectedRuleCannotExecute(t *testing.T) {
	app := setupApp(t)
	authorToken, _, _ := app.registerUser(t, "author2@hospital.test", "password123")
	reviewerToken, _, _ := app.registerUser(t, "reviewer@hospital.test", "password123")

	sourceID := app.createCostCenter(t, authorToken, "SRC", "non_medical", nil)
	targetID := app.createCostCenter(t, authorToken, "TGT", "medical", nil)

	ruleID := createPercentageRule(t, app, authorToken, "SRC-SPLIT", sourceID,
		map[string]string{targetID: "100"})

	app.request("POST", "/api/v1/allocation-rules/"+ruleID+"/submit", "", authorToken)
	rec := app.request("POST", "/api/v1/allocation-rules/"+ruleID+"/reject", "", reviewerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/v1/allocation-rules/"+ruleID+"/execute?period_start=2026-03-01&period_end=2026-03-31", "", authorToken)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for rejected rule, got %d: %s", rec.Code, rec.Body.String())
	}
	assertErrorCode(t, rec, "STATE_TRANSITION")
}

func TestAllocationFlow_PercentagesMustSum(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "sum@hospital.test", "password123")

	sourceID := app.createCostCenter(t, token, "SRC", "non_medical", nil)
	targetID := app.createCostCenter(t, token, "TGT", "medical", nil)

	body := fmt.Sprintf(`{"code":"BAD","name":"Bad Rule","source_cost_center_id":%q,"basis":"percentage","effective_date":"2026-01-01T00:00:00Z","targets":[{"target_cost_center_id":%q,"percentage":"99"}]}`,
		sourceID, targetID)
	rec := app.request("POST", "/api/v1/allocation-rules", body, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	assertErrorCode(t, rec, "VALIDATION_ERROR")
}
