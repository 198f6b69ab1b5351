// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const loopbackShutdownTimeout = 5 * time.Second

var responsePage = template.Must(template.New("response").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1 id="title">{{.Title}}</h1>
<p id="message">{{.Message}}</p>
</body>
</html>
`))

type responsePageData struct {
	Title   string
	Message string
}

// loopback is a one-shot http listener for the redirect of an interactive
// flow.
type loopback struct {
	listener net.Listener
	url      *url.URL
}

// listenLoopback binds the redirect uri. The uri must be an http loopback
// uri; a missing port (or port 0) binds any free port.
func listenLoopback(redirectURI string) (*loopback, error) {
	const op = "oidc.listenLoopback"
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse redirect uri: %w", op, ErrInvalidRedirectURI)
	}
	if u.Scheme != "http" || !isLoopback(u.Hostname()) {
		return nil, fmt.Errorf("%s: %q is not an http loopback uri: %w", op, redirectURI, ErrInvalidRedirectURI)
	}
	host := u.Hostname()
	if host == "localhost" {
		host = "127.0.0.1"
	}
	port := u.Port()
	if port == "" {
		port = "0"
	}
	l, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to listen on redirect uri: %w", op, err)
	}
	bound := *u
	bound.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(l.Addr().(*net.TCPAddr).Port))
	bound.RawQuery, bound.Fragment = "", ""
	if bound.Path == "" {
		bound.Path = "/"
	}
	return &loopback{listener: l, url: &bound}, nil
}

// URL returns the redirect uri the listener is bound to.
func (lb *loopback) URL() string {
	return lb.url.String()
}

// wait serves the loopback, calls open and waits for the first request to
// the redirect path. page renders the response shown to the user. The
// listener is closed when wait returns.
func (lb *loopback) wait(ctx context.Context, open func() error, page func(url.Values) (int, responsePageData)) (url.Values, error) {
	const op = "oidc.(loopback).wait"
	received := make(chan url.Values, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(lb.url.Path, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		select {
		case received <- q:
		default:
		}
		status, data := page(q)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = responsePage.Execute(w, data)
	})
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(lb.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), loopbackShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := open(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrOpenBrowser, err)
	}
	select {
	case q := <-received:
		return q, nil
	case err := <-serveErr:
		return nil, fmt.Errorf("%s: loopback server failed: %w", op, err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", op, ErrInteractionTimeout)
		}
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

func loginResponsePage(q url.Values) (int, responsePageData) {
	if code := q.Get("error"); code != "" {
		msg := code
		if desc := q.Get("error_description"); desc != "" {
			msg += ": " + desc
		}
		return http.StatusBadRequest, responsePageData{Title: "Sign in failed", Message: msg}
	}
	return http.StatusOK, responsePageData{Title: "Signed in", Message: "You can close this window and return to the application."}
}

func logoutResponsePage(url.Values) (int, responsePageData) {
	return http.StatusOK, responsePageData{Title: "Signed out", Message: "You can close this window."}
}

func (lb *loopback) close() {
	_ = lb.listener.Close()
}
