package logging

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

var componentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)

// secretFields are never written in clear, whatever the formatter.
var secretFields = map[string]bool{
	"token":         true,
	"access_token":  true,
	"password":      true,
	"authorization": true,
}

const redacted = "[redacted]"

// fieldValue returns the printable value of a field, masking secrets.
func fieldValue(key string, v interface{}) interface{} {
	if secretFields[strings.ToLower(key)] {
		return redacted
	}
	return v
}

// redactingJSON masks secret fields before delegating to logrus' JSON output.
type redactingJSON struct {
	logrus.JSONFormatter
}

func (f *redactingJSON) Format(entry *logrus.Entry) ([]byte, error) {
	masked := false
	for key := range entry.Data {
		if secretFields[strings.ToLower(key)] {
			masked = true
			break
		}
	}
	if !masked {
		return f.JSONFormatter.Format(entry)
	}
	data := make(logrus.Fields, len(entry.Data))
	for key, v := range entry.Data {
		data[key] = fieldValue(key, v)
	}
	clone := *entry
	clone.Data = data
	return f.JSONFormatter.Format(&clone)
}

// TextFormatter is a custom logrus formatter.
type TextFormatter struct {
	Config FormatConfig
}

// Format renders a single log entry.
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder

	if !f.Config.DisableTimestamp {
		b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))
		b.WriteString(" ")
	}

	levelStr := entry.Level.String()
	if levelStr == "warning" {
		levelStr = "warn"
	}
	b.WriteString(fmt.Sprintf("[%s]", strings.ToUpper(levelStr)))

	if component, ok := entry.Data["component"]; ok && !f.Config.DisableComponent {
		b.WriteString(fmt.Sprintf(" [%s]", componentStyle.Render(fmt.Sprintf("%v", component))))
	}

	if entry.HasCaller() {
		fileName := filepath.Base(entry.Caller.File)
		funcName := filepath.Base(entry.Caller.Function)
		b.WriteString(fmt.Sprintf(" [%s:%d %s]", fileName, entry.Caller.Line, funcName))
	}

	b.WriteString(" ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if key != "component" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteString(fmt.Sprintf(" %s=%v", key, fieldValue(key, entry.Data[key])))
	}

	b.WriteString("\n")
	return []byte(b.String()), nil
}
