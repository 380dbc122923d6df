package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/teemow/drivedesk/internal/auth"
	"github.com/teemow/drivedesk/internal/drive"
	"github.com/teemow/drivedesk/internal/filemanager"
	"github.com/teemow/drivedesk/internal/logging"
	"github.com/teemow/drivedesk/internal/ui"
)

// Messages shown by the HTTP layer.
const (
	MsgSignInSucceeded   = "Welcome! Now viewing your Google Drive files"
	MsgSignInFailed      = "Authentication failed. Please try again."
	MsgSignInUnavailable = "Sign-in is unavailable: the Google client is not configured"
	MsgSignOutFailed     = "Sign out failed. Please try again."
	msgUploadTooLarge    = "Upload failed: the file is larger than %s"
)

// uploadField is the multipart form field holding the file.
const uploadField = "fileInput"

// uploadMemory is how much of an upload is buffered in memory before
// spilling to a temporary file.
const uploadMemory = 8 << 20

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var result filemanager.Result
	if sess.IsAuthenticated() {
		result = s.manager.List(r.Context(), sess, "")
	}
	s.renderPage(w, r, sess, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	result := s.manager.Search(r.Context(), sess, r.URL.Query().Get("q"))
	s.renderPage(w, r, sess, result)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if !s.sc.Ready() {
		s.redirectWithNotice(w, r, sess, filemanager.Failure(MsgSignInUnavailable))
		return
	}

	consentURL, err := s.sc.Authenticator().BeginSignIn(sess)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to start sign-in", logging.Err(err))
		s.redirectWithNotice(w, r, sess, filemanager.Failure(MsgSignInFailed))
		return
	}

	http.Redirect(w, r, consentURL, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	_, err := s.sc.Authenticator().CompleteSignIn(r.Context(), sess, auth.CallbackParams{
		State: q.Get("state"),
		Code:  q.Get("code"),
		Error: q.Get("error"),
	})
	if err != nil {
		s.logger.WarnContext(r.Context(), "Sign-in failed", logging.Err(err))
		s.redirectWithNotice(w, r, sess, filemanager.Failure(MsgSignInFailed))
		return
	}

	s.redirectWithNotice(w, r, sess, filemanager.Success(MsgSignInSucceeded))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if err := s.sc.Authenticator().SignOut(r.Context(), sess); err != nil {
		s.logger.ErrorContext(r.Context(), "Sign-out failed", logging.Err(err))
		s.redirectWithNotice(w, r, sess, filemanager.Failure(MsgSignOutFailed))
		return
	}

	s.sessions.Remove(r.Context(), w, sess.ID())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)

	var req *drive.UploadRequest
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.WarnContext(r.Context(), "Upload rejected: body too large", "limit", s.maxUploadSize)
			s.redirectWithNotice(w, r, sess, filemanager.Failure(fmt.Sprintf(msgUploadTooLarge, ui.FormatSize(s.maxUploadSize))))
			return
		}
		s.logger.DebugContext(r.Context(), "Upload form unreadable", logging.Err(err))
	} else {
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		if file, header, err := r.FormFile(uploadField); err == nil {
			defer file.Close()
			req = &drive.UploadRequest{
				Name:     header.Filename,
				MimeType: header.Header.Get("Content-Type"),
				Content:  file,
			}
		}
	}

	result, _ := s.manager.Upload(r.Context(), sess, req)
	s.respond(w, r, sess, result)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	dl, notice := s.manager.Download(r.Context(), sess, r.PathValue("id"))
	if notice != nil {
		s.redirectWithNotice(w, r, sess, notice)
		return
	}
	defer dl.Body.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": dl.Name})
	if disposition == "" {
		disposition = "attachment"
	}

	h := w.Header()
	h.Set("Content-Type", dl.MimeType)
	h.Set("Content-Disposition", disposition)
	h.Set("Cache-Control", "no-store")
	if dl.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(dl.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		s.logger.WarnContext(r.Context(), "Download interrupted", logging.FileID(r.PathValue("id")), logging.Err(err))
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	target, notice := s.manager.View(r.PathValue("id"))
	if notice != nil {
		s.redirectWithNotice(w, r, sess, notice)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := s.renderer.RenderConfirm(&buf, ui.ConfirmPage{
		Title:  s.title,
		FileID: r.PathValue("id"),
		Prompt: filemanager.MsgDeleteConfirm,
	})
	s.writeHTML(w, r, &buf, err)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	confirmed := r.PostFormValue("confirm") == "yes"
	result := s.manager.Delete(r.Context(), sess, r.PathValue("id"), filemanager.Confirmed(confirmed))
	s.respond(w, r, sess, result)
}

// session resolves the browser session, answering 500 when none can be created.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	sess, err := s.sessions.Resolve(w, r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to resolve session", logging.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

// respond renders the page when the operation attempted its list refresh, and
// otherwise redirects home with the operation's banner.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sess *auth.Session, result filemanager.Result) {
	if result.Listed || result.LoadError != nil {
		s.renderPage(w, r, sess, result)
		return
	}
	s.redirectWithNotice(w, r, sess, result.Notice)
}

func (s *Server) redirectWithNotice(w http.ResponseWriter, r *http.Request, sess *auth.Session, n *filemanager.Notice) {
	if n != nil {
		s.sessions.SetFlash(sess.ID(), n)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, sess *auth.Session, result filemanager.Result) {
	page := ui.Page{
		Title:            s.title,
		SignedIn:         sess.IsAuthenticated(),
		AuthorizeEnabled: s.sc.Ready(),
		Query:            result.Query,
		Files:            result.Files,
	}
	applyNotice(&page, s.sessions.TakeFlash(sess.ID()))
	applyNotice(&page, result.Notice)
	applyNotice(&page, result.LoadError)
	if page.ErrorMessage == filemanager.MsgSignInRequired {
		page.SignedIn = false
	}

	var buf bytes.Buffer
	err := s.renderer.RenderPage(&buf, page)
	s.writeHTML(w, r, &buf, err)
}

func (s *Server) writeHTML(w http.ResponseWriter, r *http.Request, buf *bytes.Buffer, err error) {
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to render page", logging.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func applyNotice(p *ui.Page, n *filemanager.Notice) {
	switch {
	case n == nil:
	case n.IsError():
		p.ErrorMessage = n.Message
	default:
		p.SuccessMessage = n.Message
	}
}
