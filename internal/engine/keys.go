package engine

import (
	"path"
	"strings"
	"time"
)

const configurationSuffix = "-Configuration"

// keyDir returns the directory part shared by every object of one backup:
// the optional prefix followed by the timestamp rendered with PathLayout.
func (e *Engine) keyDir(now time.Time) string {
	return path.Join(strings.Trim(e.cfg.KeyPrefix, "/"), e.layout.FormatString(now.UTC()))
}

// dataKey is <dir>/<table>.json, or <dir>/<table>-<frequency>.json.
func dataKey(dir, table, frequency string) string {
	name := table
	if frequency != "" {
		name += "-" + frequency
	}
	return path.Join(dir, name+".json")
}

func configurationKey(dir, table string) string {
	return path.Join(dir, table+configurationSuffix+".json")
}
