package nmj

import (
	"strings"
)

const (
	shellPrompt        = "sh-3.00# "
	networkSharePrefix = "NETWORK_SHARE/"
	loopbackAddress    = "127.0.0.1"
)

// sourceSentinel is the prompt echo that ends the /tmp/source output.
const sourceSentinel = shellPrompt + "cat /tmp/netshare"

type parseState int

const (
	seekDatabase parseState = iota
	readDevice
	expectSentinel
)

// sourceInfo is what /tmp/source reveals about the active NMJ database.
type sourceInfo struct {
	Database string
	Device   string
}

// IsNetworkShare reports whether the database lives on a mounted share.
func (s sourceInfo) IsNetworkShare() bool {
	return strings.HasPrefix(s.Device, networkSharePrefix)
}

// ShareName is the device without the NETWORK_SHARE/ prefix.
func (s sourceInfo) ShareName() string {
	return strings.TrimPrefix(s.Device, networkSharePrefix)
}

// transcriptLines splits terminal output on \n and drops the trailing \r.
func transcriptLines(transcript string) []string {
	lines := strings.Split(transcript, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// parseSource finds a "<path>.db" line followed by a device line that is
// directly followed by the netshare prompt. When /tmp/source has no trailing
// newline the prompt is glued to the device line.
func parseSource(transcript string) (sourceInfo, bool) {
	var (
		state parseState
		info  sourceInfo
	)

	lines := transcriptLines(transcript)
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch state {
		case seekDatabase:
			if isDatabaseLine(line) {
				info = sourceInfo{Database: line}
				state = readDevice
			}
		case readDevice:
			if idx := strings.Index(line, sourceSentinel); idx >= 0 {
				if device := line[:idx]; device != "" {
					info.Device = device
					return info, true
				}
				state = seekDatabase
				i--
				continue
			}
			if line == "" {
				state = seekDatabase
				continue
			}
			info.Device = line
			state = expectSentinel
		case expectSentinel:
			// a prompt glued to this line belongs to a device read after
			// info.Device when that line is itself a database
			idx := strings.Index(line, sourceSentinel)
			if idx == 0 || (idx > 0 && !isDatabaseLine(info.Device)) {
				return info, true
			}
			// the device line may itself be the start of another match
			state = seekDatabase
			i -= 2
		}
	}
	return sourceInfo{}, false
}

func isDatabaseLine(line string) bool {
	return len(line) > len(".db") && strings.HasSuffix(line, ".db")
}

// findMount returns the line immediately preceding the line that starts with
// the share name, with the loopback address replaced by host.
func findMount(transcript, share, host string) (string, bool) {
	if share == "" {
		return "", false
	}
	lines := transcriptLines(transcript)
	for i := 0; i+1 < len(lines); i++ {
		if !strings.HasPrefix(lines[i+1], share) {
			continue
		}
		mount := strings.TrimSpace(lines[i])
		if mount == "" {
			continue
		}
		return strings.ReplaceAll(mount, loopbackAddress, host), true
	}
	return "", false
}
