package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// AttachmentKind tags which form an AttachmentRef holds.
type AttachmentKind int

const (
	AttachmentByID AttachmentKind = iota
	AttachmentRecord
)

// AttachmentFile is the structured form of an attachment reference.
type AttachmentFile struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	URL      string `json:"url"`
}

// AttachmentRef is either a bare attachment id (legacy tasks) or a full
// record. On the wire the first form is a JSON string, the second an object.
type AttachmentRef struct {
	Kind AttachmentKind
	ID   string
	File AttachmentFile
}

// AttachmentID builds the bare-id form.
func AttachmentID(id string) AttachmentRef {
	return AttachmentRef{Kind: AttachmentByID, ID: id}
}

// AttachmentFromFile builds the structured form.
func AttachmentFromFile(f AttachmentFile) AttachmentRef {
	return AttachmentRef{Kind: AttachmentRecord, ID: f.ID, File: f}
}

var errAttachmentShape = errors.New("attachment must be a string id or an object")

func (a AttachmentRef) MarshalJSON() ([]byte, error) {
	if a.Kind == AttachmentRecord {
		return json.Marshal(a.File)
	}
	return json.Marshal(a.ID)
}

func (a *AttachmentRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errAttachmentShape
	}
	switch data[0] {
	case '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*a = AttachmentID(id)
		return nil
	case '{':
		var f AttachmentFile
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*a = AttachmentFromFile(f)
		return nil
	}
	return errAttachmentShape
}
