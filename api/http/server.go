// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http exposes the VoteService operations as a JSON HTTP API
// under /v1.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"voteStore/internal/ballot"
	"voteStore/internal/proposal"
	"voteStore/internal/registry"
	"voteStore/internal/service"
	"voteStore/pkg/log"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// kindStatusMap 将业务错误类型映射到 HTTP 状态码
var kindStatusMap = map[ballot.Kind]int{
	ballot.KindNotFound:       http.StatusNotFound,
	ballot.KindProposalClosed: http.StatusConflict,
	ballot.KindAlreadyClosed:  http.StatusConflict,
	ballot.KindAlreadyExists:  http.StatusConflict,
	ballot.KindInvalidInput:   http.StatusBadRequest,
}

// RequestObserver is called once per request with the matched route template
type RequestObserver func(route string, code int, d time.Duration)

// Config HTTP API 配置
type Config struct {
	Service  *service.Service
	Address  string
	Logger   *zap.Logger
	Observer RequestObserver
}

// Server HTTP API 服务器
type Server struct {
	svc        *service.Service
	logger     *zap.Logger
	observer   RequestObserver
	router     *mux.Router
	httpServer *http.Server
}

// NewServer 创建新的 HTTP API 服务器
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Server{
		svc:      cfg.Service,
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}
	s.router = s.routes()

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/exams/{id:[0-9]+}", s.getExam).Methods(http.MethodGet)
	v1.HandleFunc("/exams/{id:[0-9]+}", s.insertExam).Methods(http.MethodPut)
	v1.HandleFunc("/participation/{id:[0-9]+}", s.getParticipation).Methods(http.MethodGet)
	v1.HandleFunc("/participation/{id:[0-9]+}", s.insertParticipation).Methods(http.MethodPut)

	v1.HandleFunc("/proposals", s.listProposals).Methods(http.MethodGet)
	v1.HandleFunc("/proposals/count", s.proposalCount).Methods(http.MethodGet)
	v1.HandleFunc("/proposals/{id:[0-9]+}", s.getProposal).Methods(http.MethodGet)
	v1.HandleFunc("/proposals/{id:[0-9]+}", s.createProposal).Methods(http.MethodPost)
	v1.HandleFunc("/proposals/{id:[0-9]+}", s.editProposal).Methods(http.MethodPut)
	v1.HandleFunc("/proposals/{id:[0-9]+}/status", s.proposalStatus).Methods(http.MethodGet)
	v1.HandleFunc("/proposals/{id:[0-9]+}/votes", s.vote).Methods(http.MethodPost)
	v1.HandleFunc("/proposals/{id:[0-9]+}/end", s.endProposal).Methods(http.MethodPost)

	v1.HandleFunc("/greet/{name}", s.greet).Methods(http.MethodGet)
	return r
}

// Handler 返回路由（测试用）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动 HTTP 服务器，阻塞直到 Stop
func (s *Server) Start() error {
	log.Info("Starting HTTP API server", log.String("address", s.httpServer.Addr), log.Component("http"))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve serves on an existing listener, blocking until Stop
func (s *Server) Serve(lis net.Listener) error {
	log.Info("Starting HTTP API server", log.String("address", lis.Addr().String()), log.Component("http"))
	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅停止 HTTP 服务器
func (s *Server) Stop(ctx context.Context) error {
	log.Info("Stopping HTTP API server", log.Component("http"))
	return s.httpServer.Shutdown(ctx)
}

// requestID 为每个请求分配 ID（保留客户端提供的 ID）
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		if s.observer != nil {
			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			s.observer(route, rec.status, elapsed)
		}
		s.logger.Debug("HTTP request",
			log.Method(r.Method),
			log.String("path", r.URL.Path),
			log.Int("status", rec.status),
			log.Duration("duration", elapsed),
			log.RequestID(w.Header().Get(RequestIDHeader)),
			log.Component("http"))
	})
}

func (s *Server) getExam(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	exam, err := s.svc.GetExam(registry.ExamID(id))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exam": exam})
}

func (s *Server) insertExam(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var exam registry.Exam
	if !s.decode(w, r, &exam) {
		return
	}
	prev, err := s.svc.InsertExam(registry.ExamID(id), exam)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"previous": prev})
}

func (s *Server) getParticipation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	count, err := s.svc.GetParticipation(registry.ExamID(id))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (s *Server) insertParticipation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Count *uint64 `json:"count"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.Count == nil {
		s.writeError(w, errorf("count is required"))
		return
	}
	prev, err := s.svc.InsertParticipation(registry.ExamID(id), registry.Count(*body.Count))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"previous": prev})
}

func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var startID uint64
	var limit int
	var err error
	if v := q.Get("start_id"); v != "" {
		if startID, err = strconv.ParseUint(v, 10, 64); err != nil {
			s.writeError(w, errorf("start_id must be an unsigned integer"))
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			s.writeError(w, errorf("limit must be a non-negative integer"))
			return
		}
	}

	entries, err := s.svc.ListProposals(proposal.ID(startID), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": entries})
}

func (s *Server) proposalCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.GetProposalCount()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (s *Server) getProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	p, err := s.svc.GetProposal(proposal.ID(id))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposal": p})
}

func (s *Server) createProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.svc.CreateProposal(proposal.ID(id), body.Description); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct{}{})
}

func (s *Server) editProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var edit service.ProposalEdit
	if !s.decode(w, r, &edit) {
		return
	}
	if err := s.svc.EditProposal(proposal.ID(id), edit); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) proposalStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	st, err := s.svc.GetProposalStatus(proposal.ID(id))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": st})
}

func (s *Server) vote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Choice string `json:"choice"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	choice, err := ballot.ParseChoice(body.Choice)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.Vote(proposal.ID(id), choice); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) endProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.EndProposal(proposal.ID(id)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) greet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": s.svc.Greet(mux.Vars(r)["name"])})
}

// pathID 解析路径中的 {id}
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, errorf("id must be an unsigned 64-bit integer"))
		return 0, false
	}
	return id, true
}

// decode 解析 JSON 请求体，失败时写入 400
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, errorf("malformed request body: "+err.Error()))
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := ballot.KindOf(err)
	code, ok := kindStatusMap[kind]
	if !ok {
		code = http.StatusInternalServerError
		s.logger.Error("HTTP request failed", log.Err(err), log.Component("http"))
	}
	writeJSON(w, code, errorBody{Error: err.Error(), Kind: kind.String()})
}

func errorf(msg string) error {
	return fmt.Errorf("%w: %s", ballot.ErrInvalidInput, msg)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to write HTTP response", log.Err(err), log.Component("http"))
	}
}
