package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_StripsNulBytes(t *testing.T) {
	raw := "hostname\x00 switch01\x00\ninterface Gi0/1\n"
	assert.Equal(t, "hostname switch01\ninterface Gi0/1\n", Sanitize(raw))
}

func TestSanitize_NoNulBytes(t *testing.T) {
	raw := "hostname switch01\n"
	assert.Equal(t, raw, Sanitize(raw))
}

func TestSanitize_PreservesWhitespace(t *testing.T) {
	// Indentation and blank lines are content; only NUL goes.
	raw := "interface Gi0/1\n  description uplink\n\n\x00end\n"
	assert.Equal(t, "interface Gi0/1\n  description uplink\n\nend\n", Sanitize(raw))
}

func TestTrimShellOutput_FullSession(t *testing.T) {
	raw := "Welcome to switch01\n" +
		"switch01# terminal length 0\n" +
		"switch01# show running-config\n" +
		"hostname switch01\n" +
		"interface Gi0/1\n" +
		"switch01# exit\n" +
		"Connection closed.\n"

	got := trimShellOutput(raw, []string{"terminal length 0", "show running-config"})
	assert.Equal(t, "hostname switch01\ninterface Gi0/1", got)
}

func TestTrimShellOutput_NoCommands(t *testing.T) {
	assert.Equal(t, "raw capture", trimShellOutput("  raw capture\n", nil))
}

func TestTrimShellOutput_CommandEchoMissing(t *testing.T) {
	raw := "hostname switch01\n"
	got := trimShellOutput(raw, []string{"show running-config"})
	assert.Equal(t, "hostname switch01", got)
}

func TestTrimShellOutput_NoExitTail(t *testing.T) {
	raw := "switch01# show running-config\nhostname switch01\n"
	got := trimShellOutput(raw, []string{"show running-config"})
	assert.Equal(t, "hostname switch01", got)
}

func TestTrimShellOutput_ExitLinesInBodySurvive(t *testing.T) {
	// Cisco BGP stanzas end in exit lines of their own; the teardown cut must
	// anchor on the final prompt, not the last occurrence of "exit".
	raw := "switch01# show running-config\n" +
		"router bgp 65001\n" +
		" address-family ipv4\n" +
		"exit-address-family\n" +
		" exit\n" +
		"switch01# exit\n"

	got := trimShellOutput(raw, []string{"show running-config"})
	assert.Equal(t, "router bgp 65001\n address-family ipv4\nexit-address-family\n exit", got)
}

func TestTrimShellOutput_BarePromptTailWithoutExitEcho(t *testing.T) {
	// With terminal echo suppressed the closing exit never comes back; the
	// capture ends on a bare prompt instead.
	raw := "switch01# show running-config\n" +
		"hostname switch01\n" +
		"exit-address-family\n" +
		"switch01# "

	got := trimShellOutput(raw, []string{"show running-config"})
	assert.Equal(t, "hostname switch01\nexit-address-family", got)
}

func TestTrimShellOutput_ConfigBodyUntouched(t *testing.T) {
	// Mid-body content that resembles a banner or prompt must survive.
	raw := "switch01# show running-config\n" +
		"banner motd ^Authorized access only^\n" +
		"line vty 0 4\n" +
		"switch01# exit\n"

	got := trimShellOutput(raw, []string{"show running-config"})
	assert.Equal(t, "banner motd ^Authorized access only^\nline vty 0 4", got)
}
