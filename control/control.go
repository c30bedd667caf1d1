// Package control is the backend's local UI surface: a JWT-secured chi
// HTTP API for login, and a websocket channel that accepts manual power
// and state-request frames from the operator UI and streams telemetry
// back.
package control

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/AuroraRoboticsLab/MiningRobot/power"
	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
	"github.com/AuroraRoboticsLab/MiningRobot/store"
	"github.com/AuroraRoboticsLab/MiningRobot/telemetry"
)

// Server holds everything the HTTP/websocket handlers need: the user
// store, the JWT signing secret, and the live robot state they read and
// write under lock.
type Server struct {
	Store     *store.Store
	JWTSecret []byte
	JWTIssuer string
	Debug     bool

	mu    sync.Mutex
	state *robotstate.State

	upgrader websocket.Upgrader
}

// New builds a Server over st, reading and writing state under its own
// lock whenever a handler runs; the caller's tick loop must use the same
// lock (via WithState) to avoid racing the HTTP handlers.
func New(st *store.Store, jwtIssuer string, jwtSecret []byte, debug bool, state *robotstate.State) *Server {
	return &Server{
		Store:     st,
		JWTSecret: jwtSecret,
		JWTIssuer: jwtIssuer,
		Debug:     debug,
		state:     state,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// WithState runs f with the server's state locked, for the tick loop to
// share safely with the HTTP handlers below.
func (s *Server) WithState(f func(*robotstate.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.state)
}

// Router builds the chi router: /api/login, /api/refresh_token behind
// JWT validation, and /ws/control.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.Login)
		r.Group(func(r chi.Router) {
			r.Use(s.ValidateJWT)
			r.Get("/refresh_token", s.JWTRefresh)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		if !s.Debug {
			r.Use(s.ValidateJWT)
		}
		r.Get("/control", s.ControlHandler)
	})

	return r
}

// --- auth ---

var jwtLifespan = time.Hour

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (l *loginPayload) Bind(r *http.Request) error { return nil }

type jwtPayload struct {
	SignedToken string `json:"token"`
}

func (s *Server) newJWT(sub string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.StandardClaims{
		Issuer:    s.JWTIssuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(jwtLifespan).Unix(),
		Subject:   sub,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(s.JWTSecret)
}

// Login looks up a user by email and issues a JWT on a matching password.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	data := &loginPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	u, err := s.Store.UserByEmail(data.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}

	if err := u.VerifyPassword([]byte(data.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			render.Render(w, r, ErrPermissionDenied(errors.New("invalid password")))
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}

	token, err := s.newJWT(u.Email)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	render.JSON(w, r, jwtPayload{token})
}

// JWTRefresh reissues a token for the already-validated caller.
func (s *Server) JWTRefresh(w http.ResponseWriter, r *http.Request) {
	token := r.Context().Value(ctxJWT).(*jwt.Token)
	claims := token.Claims.(*jwt.StandardClaims)

	tokenString, err := s.newJWT(claims.Subject)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	render.JSON(w, r, jwtPayload{tokenString})
}

type contextKey string

const ctxJWT contextKey = "jwt"

var errJWTEmpty = errors.New("bearer token not provided")

// ValidateJWT is chi middleware requiring a valid bearer token, taken from
// the query string, the Authorization header, or a "jwt" cookie, in that
// order.
func (s *Server) ValidateJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("jwt")
		if tokenStr == "" {
			bearer := r.Header.Get("Authorization")
			if len(bearer) > 7 && strings.EqualFold(bearer[0:6], "bearer") {
				tokenStr = bearer[7:]
			}
		}
		if tokenStr == "" {
			if cookie, err := r.Cookie("jwt"); err == nil {
				tokenStr = cookie.Value
			}
		}
		if tokenStr == "" {
			render.Render(w, r, ErrUnauthorized(errJWTEmpty))
			return
		}

		token, err := jwt.ParseWithClaims(tokenStr, &jwt.StandardClaims{},
			func(*jwt.Token) (interface{}, error) { return s.JWTSecret, nil })
		if err != nil {
			render.Render(w, r, ErrUnauthorized(err))
			return
		}
		if !token.Valid {
			render.Render(w, r, ErrUnauthorized(errors.New("invalid token")))
			return
		}

		ctx := context.WithValue(r.Context(), ctxJWT, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --- control websocket ---

// controlFrame is one inbound message: either a manual power vector or a
// request to enter a new autonomy run state.
type controlFrame struct {
	Power      *power.Vector      `json:"power,omitempty"`
	RequestRun *string            `json:"request_run,omitempty"`
}

// ControlHandler upgrades to a websocket, accepting controlFrame messages
// and streaming a telemetry.Frame back after each one.
func (s *Server) ControlHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var in controlFrame
		if err := conn.ReadJSON(&in); err != nil {
			return
		}

		s.WithState(func(st *robotstate.State) {
			if in.Power != nil && (st.Run == robotstate.Drive || st.Run == robotstate.DriveRaw || st.Run == robotstate.BackendDriver) {
				st.Power = *in.Power
			}
			if in.RequestRun != nil {
				if rs, ok := runStateByName[*in.RequestRun]; ok {
					st.Run = rs
				}
			}
		})

		var out telemetry.Frame
		s.WithState(func(st *robotstate.State) { out = telemetry.Fill(st) })
		if err := conn.WriteJSON(out); err != nil {
			return
		}
	}
}

var runStateByName = map[string]robotstate.RunState{
	"STOP": robotstate.STOP, "drive": robotstate.Drive, "driveraw": robotstate.DriveRaw,
	"backend_driver": robotstate.BackendDriver, "autonomy": robotstate.Autonomy,
	"scan": robotstate.Scan, "mine_start": robotstate.MineStart, "mine": robotstate.Mine,
	"mine_stall": robotstate.MineStall, "mine_finish": robotstate.MineFinish,
	"weigh": robotstate.Weigh, "haul_start": robotstate.HaulStart, "haul_out": robotstate.HaulOut,
	"haul_dump": robotstate.HaulDump, "haul_back": robotstate.HaulBack, "haul_finish": robotstate.HaulFinish,
	"stow": robotstate.Stow, "stowed": robotstate.Stowed, "daily_start": robotstate.DailyStart,
}
