// Package httpupload implements the token-authenticated HTTP upload server
// (§4.K): a small REST-shaped protocol in front of upload.Manager and the
// directory operations of fat.Volume. It follows the teacher's custom
// net/http.Server style (periph-web's webServer wrapping http.Server with a
// bounded header read) rather than a hand-rolled socket parser, mapping the
// HEADER_READ_TIMEOUT_MS / 2 KiB header cap onto ReadHeaderTimeout and
// http.Server's built-in header-size limit.
package httpupload

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/inkframe/firmware/fat"
	"github.com/inkframe/firmware/upload"
)

// HeaderReadTimeout and MaxHeaderBytes bound request framing per §4.K.
const (
	HeaderReadTimeout = 10 * time.Second
	MaxHeaderBytes    = 2048
	chunkBufferSize   = 4096
)

// FileSystem is the subset of *fat.Volume the server needs beyond what
// upload.Manager already requires: directory creation for /mkdir.
type FileSystem interface {
	upload.FileSystem
	Mkdir(path string) error
}

// Server drives a single upload.Manager and FileSystem over HTTP, enforcing
// the token header, upload-root confinement and single in-flight chunk
// buffer described in §4.K.
type Server struct {
	fs      FileSystem
	manager *upload.Manager
	token   string
	root    string

	bufMu sync.Mutex
	buf   []byte

	httpServer *http.Server
}

// NewServer constructs a Server. token is the compiled-in X-Upload-Token
// value; an empty token disables authentication entirely (§4.K). root is
// the upload root prefix (e.g. "/assets") every path must lie within.
func NewServer(fs FileSystem, token, root string) *Server {
	return &Server{
		fs:      fs,
		manager: upload.NewManager(fs),
		token:   token,
		root:    root,
		buf:     make([]byte, chunkBufferSize),
	}
}

// ListenAndServe binds addr and serves until the listener errors or the
// process is killed; each connection is HTTP/1.0-shaped with
// Connection: close, matching §4.K's request framing.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.register(mux)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: HeaderReadTimeout,
		MaxHeaderBytes:    MaxHeaderBytes,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpupload: listen %s: %w", addr, err)
	}
	return s.httpServer.Serve(ln)
}

// Close shuts the server down, if it is running.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

func (s *Server) register(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/mkdir", s.auth(s.handleMkdir))
	mux.HandleFunc("/rm", s.auth(s.handleRemove))
	mux.HandleFunc("/upload_begin", s.auth(s.handleUploadBegin))
	mux.HandleFunc("/upload_chunk", s.auth(s.handleUploadChunk))
	mux.HandleFunc("/upload_commit", s.auth(s.handleUploadCommit))
	mux.HandleFunc("/upload_abort", s.auth(s.handleUploadAbort))
	mux.HandleFunc("/upload", s.auth(s.handleUploadCombined))
}

// auth wraps h, requiring X-Upload-Token to match s.token unless no token
// is compiled in, per §4.K. /health is never wrapped.
func (s *Server) auth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("X-Upload-Token") != s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		r.Close = true
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// resolvePath URL-decodes and validates the path query parameter against
// the configured upload root, per §4.K.
func (s *Server) resolvePath(r *http.Request) (string, error) {
	p := r.URL.Query().Get("path")
	if p == "" || !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path must start with /")
	}
	p = path.Clean(p)
	if p != s.root && !strings.HasPrefix(p, s.root+"/") {
		return "", fmt.Errorf("path outside upload root")
	}
	return p, nil
}

func (s *Server) handleMkdir(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path, err := s.resolvePath(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.fs.Mkdir(path); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path, err := s.resolvePath(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.fs.Remove(path); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUploadBegin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path, err := s.resolvePath(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	size, err := strconv.ParseUint(r.URL.Query().Get("size"), 10, 32)
	if err != nil {
		http.Error(w, "invalid size", http.StatusBadRequest)
		return
	}
	if err := s.manager.Begin(path, uint32(size)); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.ContentLength < 0 {
		http.Error(w, "content-length required", http.StatusBadRequest)
		return
	}
	if err := s.forwardChunk(r.Body, r.ContentLength); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUploadCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.manager.Commit(); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUploadAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.manager.Abort(); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleUploadCombined drives Begin, one Chunk per buffered read of the
// streamed body (see forwardChunk) and Commit in one request, Aborting on any mid-stream failure, per §4.K's
// PUT /upload?path=... route.
func (s *Server) handleUploadCombined(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path, err := s.resolvePath(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.ContentLength < 0 {
		http.Error(w, "content-length required", http.StatusBadRequest)
		return
	}

	if err := s.manager.Begin(path, uint32(r.ContentLength)); err != nil {
		writeMappedError(w, err)
		return
	}
	if err := s.forwardChunk(r.Body, r.ContentLength); err != nil {
		s.manager.Abort()
		writeMappedError(w, err)
		return
	}
	if err := s.manager.Commit(); err != nil {
		s.manager.Abort()
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// forwardChunk streams exactly size bytes from body through the single
// pooled chunk buffer into the open session, one chunkBufferSize read at a
// time (§4.K: "a single chunk buffer is loaned from a global pool, one in
// flight").
func (s *Server) forwardChunk(body io.Reader, size int64) error {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()

	var remaining = size
	for remaining > 0 {
		n := int64(len(s.buf))
		if remaining < n {
			n = remaining
		}
		read, err := io.ReadFull(body, s.buf[:n])
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}
		if read == 0 {
			break
		}
		if err := s.manager.Chunk(s.buf[:read]); err != nil {
			return err
		}
		remaining -= int64(read)
	}
	return nil
}

// writeMappedError maps a fat/upload domain error onto the HTTP status
// codes specified in §7/§4.K and writes it as the response.
func writeMappedError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	if errors.Is(err, upload.ErrBusy) {
		return http.StatusConflict
	}
	var fe *fat.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fat.CodeNotReady:
			return http.StatusServiceUnavailable
		case fat.CodeNotFound:
			return http.StatusNotFound
		case fat.CodeAlreadyExists, fat.CodeNotEmpty:
			return http.StatusConflict
		case fat.CodeDirFull, fat.CodeClusterChainTooLong:
			return http.StatusInsufficientStorage
		case fat.CodeNameTooLong:
			return http.StatusRequestEntityTooLarge
		case fat.CodeIoError:
			return http.StatusInternalServerError
		default:
			return http.StatusBadRequest
		}
	}
	return http.StatusBadRequest
}
