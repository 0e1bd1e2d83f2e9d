package http

import (
	"time"

	xutil "FinCast/pkg/util"
)

// ParseTimeDefault parses a query time or returns def if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }
