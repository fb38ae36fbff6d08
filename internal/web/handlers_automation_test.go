//go:build !no_automation

package web

import (
	"net/http"
	"testing"

	"zcl-gateway/internal/automation"
)

func setupAutomationServer(t *testing.T) (*Server, *automation.Engine) {
	t.Helper()
	mgr, err := automation.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var engine *automation.Engine
	srv, _, coord := setupTestServer(t, func(s *Server) {
		engine = automation.NewEngine(s.coord.Router(), mgr, testLogger)
		WithAutomation(engine, mgr)(s)
	})
	coord.Router().AddListener(engine)
	engine.Start()
	t.Cleanup(engine.Stop)
	return srv, engine
}

func TestAPIAutomationsUnavailable(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doRequest(t, srv, "GET", "/api/automations", nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[[]automationView](t, w); len(got) != 0 {
		t.Errorf("list = %+v", got)
	}

	w = doRequest(t, srv, "POST", "/api/automations", map[string]any{"name": "x"})
	expectStatus(t, w, http.StatusNotFound)

	w = doRequest(t, srv, "POST", "/api/automations/_inline/run", map[string]any{"code": ""})
	expectStatus(t, w, http.StatusNotFound)
}

func TestAPIAutomationLifecycle(t *testing.T) {
	srv, engine := setupAutomationServer(t)

	w := doRequest(t, srv, "POST", "/api/automations", map[string]any{
		"name":    "Heat Alert",
		"code":    `zcl.log("loaded")`,
		"enabled": true,
	})
	expectStatus(t, w, http.StatusCreated)
	created := decode[automationView](t, w)
	if created.ID != "heat_alert" || !created.Running {
		t.Fatalf("created = %+v", created)
	}

	w = doRequest(t, srv, "GET", "/api/automations/heat_alert", nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[automationView](t, w); got.Code != `zcl.log("loaded")` || got.Meta.Name != "Heat Alert" {
		t.Errorf("get = %+v", got)
	}

	w = doRequest(t, srv, "POST", "/api/automations/heat_alert/toggle", nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[automationView](t, w); got.Meta.Enabled || got.Running {
		t.Errorf("after toggle = %+v", got)
	}
	if len(engine.Running()) != 0 {
		t.Errorf("running = %v", engine.Running())
	}

	w = doRequest(t, srv, "PUT", "/api/automations/heat_alert", map[string]any{
		"description": "warns when hot",
		"code":        `zcl.log("v2")`,
		"enabled":     true,
	})
	expectStatus(t, w, http.StatusOK)
	updated := decode[automationView](t, w)
	if updated.Meta.Name != "Heat Alert" || updated.Meta.Description != "warns when hot" || !updated.Running {
		t.Errorf("updated = %+v", updated)
	}

	w = doRequest(t, srv, "GET", "/api/automations", nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[[]automationView](t, w); len(got) != 1 {
		t.Errorf("list = %+v", got)
	}

	w = doRequest(t, srv, "DELETE", "/api/automations/heat_alert", nil)
	expectStatus(t, w, http.StatusOK)
	if len(engine.Running()) != 0 {
		t.Errorf("running after delete = %v", engine.Running())
	}

	w = doRequest(t, srv, "GET", "/api/automations/heat_alert", nil)
	expectStatus(t, w, http.StatusNotFound)
	w = doRequest(t, srv, "DELETE", "/api/automations/heat_alert", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestAPIAutomationValidation(t *testing.T) {
	srv, _ := setupAutomationServer(t)

	w := doRequest(t, srv, "POST", "/api/automations", map[string]any{"code": "x = 1"})
	expectStatus(t, w, http.StatusBadRequest)

	w = doRequest(t, srv, "POST", "/api/automations", `{"name": `)
	expectStatus(t, w, http.StatusBadRequest)

	w = doRequest(t, srv, "GET", "/api/automations/a..b", nil)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestAPIAutomationRun(t *testing.T) {
	srv, _ := setupAutomationServer(t)

	w := doRequest(t, srv, "POST", "/api/automations/_inline/run", map[string]any{
		"code": `zcl.on_attribute({cluster = 0x0402, attribute = "MeasuredValue"}, function(ev)
  zcl.log("seen " .. ev.cluster_name)
end)`,
	})
	expectStatus(t, w, http.StatusOK)
	res := decode[automation.RunResult](t, w)
	if !res.OK || len(res.Logs) != 1 || res.Logs[0] != "[info] seen Temperature Measurement" {
		t.Errorf("run = %+v", res)
	}

	w = doRequest(t, srv, "POST", "/api/automations/_inline/run", map[string]any{"code": "error('boom')"})
	expectStatus(t, w, http.StatusOK)
	if res := decode[automation.RunResult](t, w); res.OK || res.Error == "" {
		t.Errorf("failing run = %+v", res)
	}

	w = doRequest(t, srv, "POST", "/api/automations/missing/run", nil)
	expectStatus(t, w, http.StatusOK)
	if res := decode[automation.RunResult](t, w); res.OK {
		t.Errorf("missing run = %+v", res)
	}
}
