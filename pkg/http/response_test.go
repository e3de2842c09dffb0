package http

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
)

func doRequest(t *testing.T, app *fiber.App, method, target string) Rep {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	var rep Rep
	if err := sonic.Unmarshal(body, &rep); err != nil {
		t.Fatalf("unmarshal %s failed: %v", body, err)
	}
	return rep
}

func TestWithRepDetail(t *testing.T) {
	app := fiber.New()
	app.Get("/runs/:runId", func(c *fiber.Ctx) error {
		return WithRepDetail(c, map[string]string{"runId": c.Params("runId")})
	})

	rep := doRequest(t, app, nethttp.MethodGet, "/runs/run-123")
	if rep.Code != OK.Code || rep.Msg != OK.Msg {
		t.Errorf("unexpected envelope: %+v", rep)
	}
	detail, ok := rep.Detail.(map[string]any)
	if !ok || detail["runId"] != "run-123" {
		t.Errorf("unexpected detail: %+v", rep.Detail)
	}
}

func TestWithRepErrMsg(t *testing.T) {
	app := fiber.New()
	app.Get("/fail", func(c *fiber.Ctx) error {
		return WithRepErrMsg(c, Failed.Code, "run not found", c.Path())
	})

	rep := doRequest(t, app, nethttp.MethodGet, "/fail")
	if rep.Code != Failed.Code {
		t.Errorf("expected code %d, got %d", Failed.Code, rep.Code)
	}
	if !strings.Contains(rep.Msg, "not found") || rep.Path != "/fail" {
		t.Errorf("unexpected envelope: %+v", rep)
	}
}

func TestHttpSetDefaults(t *testing.T) {
	h := &Http{}
	h.SetDefaults()
	if h.Port != 8080 || h.ReadTimeout != 60 || h.BodyLimit == 0 {
		t.Errorf("unexpected defaults: %+v", h)
	}
}
