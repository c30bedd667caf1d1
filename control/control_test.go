package control

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/AuroraRoboticsLab/MiningRobot/power"
	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
	"github.com/AuroraRoboticsLab/MiningRobot/store"
)

func newTestServer(t *testing.T, debug bool) (*Server, *robotstate.State) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "dev.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	if _, err := st.CreateUser("op@example.com", "Operator", []byte("secret123"), true); err != nil {
		t.Fatal(err)
	}

	state := &robotstate.State{Run: robotstate.Drive}
	return New(st, "test-issuer", []byte("test-secret"), debug, state), state
}

func doLogin(t *testing.T, srv *httptest.Server, email, password string) (*http.Response, map[string]string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]string
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestLoginIssuesJWTOnCorrectPassword(t *testing.T) {
	Convey("a correct email/password pair gets back a signed token", t, func() {
		s, _ := newTestServer(t, false)
		srv := httptest.NewServer(s.Router())
		defer srv.Close()

		resp, out := doLogin(t, srv, "op@example.com", "secret123")
		So(resp.StatusCode, ShouldEqual, http.StatusOK)
		So(out["token"], ShouldNotBeBlank)
	})
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	Convey("a wrong password is rejected without a token", t, func() {
		s, _ := newTestServer(t, false)
		srv := httptest.NewServer(s.Router())
		defer srv.Close()

		resp, out := doLogin(t, srv, "op@example.com", "wrong")
		So(resp.StatusCode, ShouldNotEqual, http.StatusOK)
		So(out["token"], ShouldBeBlank)
	})
}

func TestRefreshTokenRequiresBearer(t *testing.T) {
	Convey("refresh_token without a bearer token is unauthorized", t, func() {
		s, _ := newTestServer(t, false)
		srv := httptest.NewServer(s.Router())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/api/refresh_token")
		So(err, ShouldBeNil)
		So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
	})

	Convey("refresh_token with a valid bearer token reissues one", t, func() {
		s, _ := newTestServer(t, false)
		srv := httptest.NewServer(s.Router())
		defer srv.Close()

		_, loginOut := doLogin(t, srv, "op@example.com", "secret123")
		req, _ := http.NewRequest("GET", srv.URL+"/api/refresh_token", nil)
		req.Header.Set("Authorization", "Bearer "+loginOut["token"])

		resp, err := http.DefaultClient.Do(req)
		So(err, ShouldBeNil)
		So(resp.StatusCode, ShouldEqual, http.StatusOK)
	})
}

func TestControlHandlerAppliesPowerAndStreamsTelemetry(t *testing.T) {
	Convey("a power frame sent while manually driving is applied and echoed back as telemetry", t, func() {
		s, state := newTestServer(t, true) // Debug bypasses JWT on /ws
		srv := httptest.NewServer(s.Router())
		defer srv.Close()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/control"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		in := controlFrame{Power: &power.Vector{Left: 0.5, Right: -0.5}}
		So(conn.WriteJSON(in), ShouldBeNil)

		var out map[string]interface{}
		So(conn.ReadJSON(&out), ShouldBeNil)
		So(out["run_state"], ShouldEqual, "drive")

		s.WithState(func(st *robotstate.State) {
			So(st.Power.Left, ShouldEqual, 0.5)
			So(st.Power.Right, ShouldEqual, -0.5)
		})
		_ = state
	})

	Convey("a request_run frame switches the live autonomy state", t, func() {
		s, _ := newTestServer(t, true)
		srv := httptest.NewServer(s.Router())
		defer srv.Close()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/control"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		wanted := "stow"
		So(conn.WriteJSON(controlFrame{RequestRun: &wanted}), ShouldBeNil)

		var out map[string]interface{}
		So(conn.ReadJSON(&out), ShouldBeNil)
		So(out["run_state"], ShouldEqual, "stow")
	})
}
