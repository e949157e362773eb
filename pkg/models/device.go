package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Protocol is the transport used to reach a device. The set is closed;
// there is no auto-detection — each device carries exactly one protocol.
type Protocol string

const (
	ProtocolSSH    Protocol = "ssh"
	ProtocolTelnet Protocol = "telnet"
)

// Validate returns an error for protocols outside the closed set.
func (p Protocol) Validate() error {
	switch p {
	case ProtocolSSH, ProtocolTelnet:
		return nil
	default:
		return fmt.Errorf("unknown protocol %q", string(p))
	}
}

// DefaultPort returns the conventional port for the protocol.
func (p Protocol) DefaultPort() int {
	if p == ProtocolTelnet {
		return 23
	}
	return 22
}

// Device is a network device whose running configuration gets backed up.
// The core only reads devices; creation and mutation belong to the CRUD API.
type Device struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	Name           string    `db:"name"            json:"name"`
	Host           string    `db:"host"            json:"host"`
	Port           int       `db:"port"            json:"port"`
	Protocol       Protocol  `db:"protocol"        json:"protocol"`
	DeviceTypeID   uuid.UUID `db:"device_type_id"  json:"device_type_id"`
	CredentialID   uuid.UUID `db:"credential_id"   json:"credential_id"`
	IsActive       bool      `db:"is_active"       json:"is_active"`
	BackupSchedule *string   `db:"backup_schedule" json:"backup_schedule,omitempty"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}

// Credential is a username plus an opaque secret reference. The plaintext
// password never touches the database; it is resolved at run time from the
// secret backend.
type Credential struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Username  string    `db:"username"   json:"username"`
	SecretRef string    `db:"secret_ref" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DeviceType is immutable vendor reference data: a label and the ordered CLI
// command template executed verbatim in-session (e.g. disable pagination,
// then dump running config).
type DeviceType struct {
	ID       uuid.UUID `db:"id"       json:"id"`
	Vendor   string    `db:"vendor"   json:"vendor"`
	Commands string    `db:"commands" json:"commands"`
}

// CommandList splits the newline-delimited template into the ordered command
// sequence, dropping blank lines.
func (t DeviceType) CommandList() []string {
	var cmds []string
	for _, line := range strings.Split(t.Commands, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			cmds = append(cmds, line)
		}
	}
	return cmds
}

// BackupTarget is everything the job processor needs to run one backup:
// the device joined with its credential and command template.
type BackupTarget struct {
	Device     Device
	Credential Credential
	DeviceType DeviceType
}
