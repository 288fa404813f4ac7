package ldap

import (
	"context"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// streamBuffer is the number of entries go-ldap reads ahead of the consumer.
const streamBuffer = 64

// SearchStream yields entries as the server returns them, following paged
// results cookies between pages. A size limit exceeded result ends the
// stream without error.
type SearchStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *client
	conn   *PooledConnection
	req    *ldap.SearchRequest
	paging *ldap.ControlPaging
	resp   ldap.Response

	entry  *ldap.Entry
	primed bool
	done   bool
	err    error

	start   time.Time
	entries int
	pages   int
}

func (c *client) openStream(ctx context.Context, conn *PooledConnection, req *SearchRequest) *SearchStream {
	sctx, cancel := context.WithCancel(ctx)
	ldapReq, paging := c.buildSearchRequest(req)

	return &SearchStream{
		ctx:    sctx,
		cancel: cancel,
		client: c,
		conn:   conn,
		req:    ldapReq,
		paging: paging,
		resp:   conn.Conn().SearchAsync(sctx, ldapReq, streamBuffer),
		start:  time.Now(),
		pages:  1,
	}
}

// prime reads the first entry so connection and bind failures surface from
// Search rather than the first Next.
func (s *SearchStream) prime() error {
	if s.advance() {
		s.primed = true
		return nil
	}
	return s.err
}

// Next advances to the next entry.
func (s *SearchStream) Next() bool {
	if s.primed {
		s.primed = false
		return true
	}
	return s.advance()
}

func (s *SearchStream) advance() bool {
	if s.done {
		return false
	}

	for {
		if s.resp.Next() {
			entry := s.resp.Entry()
			if entry == nil {
				// referral
				continue
			}
			s.entry = entry
			s.entries++
			return true
		}

		if err := s.resp.Err(); err != nil {
			if IsSizeLimitExceeded(err) {
				s.finish(nil)
			} else {
				s.finish(NewLDAPError("search", err))
			}
			return false
		}

		more, err := s.nextPage()
		if err != nil || !more {
			s.finish(err)
			return false
		}
	}
}

// nextPage issues the follow-up request when the server returned a paging
// cookie.
func (s *SearchStream) nextPage() (bool, error) {
	if s.paging == nil {
		return false, nil
	}

	ctrl, ok := ldap.FindControl(s.resp.Controls(), ldap.ControlTypePaging).(*ldap.ControlPaging)
	if !ok || ctrl == nil || len(ctrl.Cookie) == 0 {
		return false, nil
	}

	if err := s.client.wait(s.ctx); err != nil {
		return false, err
	}

	s.paging.SetCookie(ctrl.Cookie)
	s.resp = s.conn.Conn().SearchAsync(s.ctx, s.req, streamBuffer)
	s.pages++
	return true, nil
}

// Entry returns the current entry.
func (s *SearchStream) Entry() *ldap.Entry {
	return s.entry
}

// Err returns the error that ended the stream, if any.
func (s *SearchStream) Err() error {
	return s.err
}

// Close abandons any outstanding request and returns the connection to the
// pool. It is safe to call more than once.
func (s *SearchStream) Close() error {
	if !s.done {
		s.done = true
		s.logCompletion()
	}
	s.release()
	return nil
}

func (s *SearchStream) finish(err error) {
	s.done = true
	s.err = err
	if err != nil && IsRetryableError(err) {
		s.conn.MarkUnhealthy()
	}
	s.logCompletion()
	s.release()
}

func (s *SearchStream) release() {
	if s.conn == nil {
		return
	}
	s.cancel()
	s.conn.Close()
	s.conn = nil
}

func (s *SearchStream) logCompletion() {
	fields := map[string]any{
		"base_dn": s.req.BaseDN,
		"entries": s.entries,
		"pages":   s.pages,
	}
	if s.err != nil {
		fields["error"] = s.err.Error()
	}
	LogPerformance(s.ctx, Subsystem, "search", time.Since(s.start), fields)
}
