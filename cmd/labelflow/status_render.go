package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"labelflow/internal/store"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var kindStyles = map[statusKind]struct{ tag, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// Lifecycle states that deserve attention in listings; everything else is info.
var statusKinds = map[store.TaskStatus]statusKind{
	store.StatusCompleted:       statusOK,
	store.StatusArchived:        statusOK,
	store.StatusChangesRequired: statusWarn,
	store.StatusSuspended:       statusWarn,
	store.StatusDeferred:        statusWarn,
	store.StatusVetoed:          statusError,
}

var titleCaser = cases.Title(language.English)

func paint(s string, kind statusKind, colorize bool) string {
	if !colorize {
		return s
	}
	return kindStyles[kind].color + s + ansiReset
}

// renderStatusLine formats a doctor style "  Label:   [TAG] message" row.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag := "[" + kindStyles[kind].tag + "]"
	if message != "" {
		tag += " " + message
	}
	return paint(fmt.Sprintf("  %-24s %s", label+":", tag), kind, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	return []string{
		paint(heading, statusInfo, colorize),
		paint(strings.Repeat("-", len(heading)), statusInfo, colorize),
	}
}

// taskStatusLabel renders READY_FOR_REVIEW as "Ready For Review".
func taskStatusLabel(status store.TaskStatus) string {
	if status == "" {
		return "-"
	}
	return titleCaser.String(strings.ToLower(strings.ReplaceAll(string(status), "_", " ")))
}

func colorStatus(status store.TaskStatus, colorize bool) string {
	return paint(taskStatusLabel(status), statusKinds[status], colorize)
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
