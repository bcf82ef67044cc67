package session

import (
	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/assembly"
	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/extract"
)

// Snapshot is a point-in-time copy of the session for presentation.
type Snapshot struct {
	State         constants.SessionState
	Generation    uint64
	FileName      string
	MIMEType      string
	Size          int64
	DocumentType  constants.DocumentType
	SolicitudID   string
	Preview       string
	HasExtraction bool
	Fields        extract.Fields
	ManualTotal   string
	Err           error
	ErrKind       string
	ErrMessage    string
	Receipt       *assembly.Receipt
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:         s.state,
		Generation:    s.gen,
		DocumentType:  s.docType,
		SolicitudID:   s.solicitudID,
		Preview:       s.preview,
		HasExtraction: s.extraction != nil,
		Fields:        s.fieldsLocked(),
		ManualTotal:   s.manualTotal,
		Err:           s.lastErr,
		ErrKind:       common.KindOf(s.lastErr),
		ErrMessage:    common.MessageOf(s.lastErr),
	}
	if s.file != nil {
		snap.FileName = s.file.Name
		snap.MIMEType = s.file.MIMEType
		snap.Size = s.file.Size
	}
	if s.receipt != nil {
		r := *s.receipt
		snap.Receipt = &r
	}
	return snap
}
