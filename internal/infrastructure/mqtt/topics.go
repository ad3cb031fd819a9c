package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "compat"

// Topics builds the MQTT topics used by the catalogue service.
//
// Every topic lives under a single configurable prefix so that several
// deployments can share a broker:
//
//	topics := mqtt.NewTopics("compat")
//	topics.CommandReload() // "compat/command/reload"
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders rooted at prefix. Surrounding slashes are
// trimmed and an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// CommandReload is the topic other services publish to when the catalogue
// should be reloaded.
//
// Example: compat/command/reload
func (t Topics) CommandReload() string {
	return t.root() + "/command/reload"
}

// EventLoaded carries the outcome of every catalogue load.
//
// Example: compat/event/loaded
func (t Topics) EventLoaded() string {
	return t.root() + "/event/loaded"
}

// SystemStatus holds the retained online/offline status, including the LWT.
//
// Example: compat/system/status
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}
