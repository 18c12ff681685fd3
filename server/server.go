// Package server is the HTTP JSON surface for the identity service. It is a
// thin layer: all business rules live in the auth and users services.
package server

import (
	"fmt"
	"net/http"

	"github.com/friendshare/identity-server/auth"
	"github.com/friendshare/identity-server/email"
	"github.com/friendshare/identity-server/internal/config"
	"github.com/friendshare/identity-server/token"
	"github.com/friendshare/identity-server/users"
)

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config
	auth   *auth.Service
	users  *users.Service
	tokens *token.Manager
}

func New(cfg config.Config, repo users.UserRepo, mail email.Sender, options ...auth.ServiceOption) (*Server, error) {
	signer := token.NewHMACSigner(cfg.GetSigningSecret())
	tokens := token.New(signer, cfg.GetIssuer(), cfg.GetAudience(),
		cfg.GetAccessTokenExpiry(), cfg.GetRefreshTokenLength())

	authService, err := auth.NewService(repo, tokens, mail, cfg, options...)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create auth service: %w", err)
	}

	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		config: cfg,
		auth:   authService,
		users:  users.NewService(repo),
		tokens: tokens,
	}

	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}
