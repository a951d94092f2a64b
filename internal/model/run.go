package model

import "time"

// Run is an archived execution outcome for a session. The live result
// is fanned out to the room and discarded; runs are the durable trace.
type Run struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"sessionId"`
	Language          string    `json:"language"`
	Stdout            string    `json:"stdout"`
	Stderr            string    `json:"stderr"`
	CompileOutput     string    `json:"compileOutput"`
	Time              string    `json:"time,omitempty"`
	Memory            int       `json:"memory,omitempty"`
	StatusID          int       `json:"statusId"`
	StatusDescription string    `json:"statusDescription"`
	CreatedAt         time.Time `json:"createdAt"`
}
