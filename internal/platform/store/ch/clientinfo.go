package ch

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo describes this process so queries are attributable in system.query_log
func BuildClientInfo(role, product string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	info := clickhouse.ClientInfo{}
	for _, p := range [][2]string{
		{product, "1"},
		{"role", role},
		{"go", runtime.Version()},
		{"commit", vcsShortSHA()},
		{"host", host},
	} {
		info.Products = append(info.Products, struct {
			Name    string
			Version string
		}{Name: p[0], Version: strings.TrimSpace(p[1])})
	}
	return info
}

func vcsShortSHA() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "unknown"
}
