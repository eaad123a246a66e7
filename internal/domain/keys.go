package domain

import "strings"

// KeyVersion tags the storage shape of a session key.
type KeyVersion int

const (
	// KeyLegacy is the bare exam id shape written by old clients. Read-only.
	KeyLegacy KeyVersion = 1
	// KeyComposite is the (student, exam) shape used for every write.
	KeyComposite KeyVersion = 2
)

// SessionKey identifies an attempt session.
type SessionKey struct {
	Version   KeyVersion
	StudentID string
	ExamID    string
}

// CanonicalKey builds the composite key used for all writes.
func CanonicalKey(studentID, examID string) SessionKey {
	return SessionKey{Version: KeyComposite, StudentID: studentID, ExamID: examID}
}

// LegacyKey builds the bare exam id key consulted as a read fallback.
func LegacyKey(examID string) SessionKey {
	return SessionKey{Version: KeyLegacy, ExamID: examID}
}

// String renders the storage form: "v2:{student}:{exam}" or the bare exam id.
func (k SessionKey) String() string {
	if k.Version == KeyLegacy {
		return k.ExamID
	}
	return "v2:" + k.StudentID + ":" + k.ExamID
}

// ParseSessionKey is the inverse of String.
func ParseSessionKey(raw string) SessionKey {
	if rest, ok := strings.CutPrefix(raw, "v2:"); ok {
		if student, exam, ok := strings.Cut(rest, ":"); ok {
			return CanonicalKey(student, exam)
		}
	}
	return LegacyKey(raw)
}

// ResultKey identifies the unique result of a (student, exam) pair.
type ResultKey struct {
	StudentID string
	ExamID    string
}
