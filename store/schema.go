package store

import (
	"fmt"
	"slices"
	"strings"
)

// Collection names of the comparison pipeline.
const (
	CrawlInstances         = "crawl_instance"
	VanillaDOMMutation     = "vanilla_dommutation"
	AdBlockDOMMutation     = "adb_dommutation"
	ControlDOMMutation     = "control_dommutation"
	VariantDOMMutation     = "variant_dommutation"
	VanillaWebRequests     = "vanilla_webrequests"
	AdBlockWebRequests     = "adb_webrequests"
	ControlOnly            = "control_only"
	VariantOnly            = "variant_only"
	CVDetection            = "cv_detection"
	CVWebRequestsDiffGroup = "cvwebrequests_diff_group"
	DOMMutationDiffGroup   = "dommutation_diff_group"
	PageSourceDiff         = "pgsource_diff"
)

// Collections lists every table Init creates.
var Collections = []string{
	AdBlockDOMMutation,
	AdBlockWebRequests,
	ControlDOMMutation,
	ControlOnly,
	CrawlInstances,
	CVDetection,
	CVWebRequestsDiffGroup,
	DOMMutationDiffGroup,
	PageSourceDiff,
	VanillaDOMMutation,
	VanillaWebRequests,
	VariantDOMMutation,
	VariantOnly,
}

// eventCollections hold one row per recorded message of a crawl instance.
var eventCollections = []string{
	VanillaDOMMutation, AdBlockDOMMutation, ControlDOMMutation, VariantDOMMutation,
	VanillaWebRequests, AdBlockWebRequests,
}

// indexedCollections get the (crawl_group_name, crawl_instance_id) index.
var indexedCollections = []string{
	VanillaDOMMutation, VanillaWebRequests, AdBlockDOMMutation, AdBlockWebRequests,
}

// IsEventCollection reports whether name can receive artifact events.
func IsEventCollection(name string) bool {
	return slices.Contains(eventCollections, name)
}

const crawlInstanceDDL = `
CREATE TABLE IF NOT EXISTS crawl_instance (
    id               TEXT PRIMARY KEY,
    crawl_group_name TEXT NOT NULL,
    file_name        TEXT NOT NULL,
    file_path        TEXT NOT NULL DEFAULT '',
    url              TEXT NOT NULL DEFAULT '',
    is_control       INTEGER NOT NULL DEFAULT 0,
    start_time       INTEGER,
    end_time         INTEGER,
    created_at       INTEGER NOT NULL,
    UNIQUE (crawl_group_name, url, file_name, is_control)
);
CREATE INDEX IF NOT EXISTS idx_crawl_instance_group_file ON crawl_instance(crawl_group_name, file_name);
`

const eventDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id                TEXT PRIMARY KEY,
    crawl_group_name  TEXT NOT NULL,
    crawl_instance_id TEXT NOT NULL,
    seq               INTEGER NOT NULL,
    type              TEXT NOT NULL,
    time              INTEGER,
    body              TEXT NOT NULL,
    FOREIGN KEY (crawl_instance_id) REFERENCES crawl_instance(id) ON DELETE CASCADE
);
`

const documentDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id               TEXT PRIMARY KEY,
    crawl_group_name TEXT NOT NULL DEFAULT '',
    body             TEXT NOT NULL DEFAULT '{}',
    created_at       INTEGER NOT NULL
);
`

const indexDDL = `CREATE INDEX IF NOT EXISTS idx_%[1]s_group_instance ON %[1]s(crawl_group_name, crawl_instance_id);
`

// Schema contains the complete DDL: every collection plus the two-field
// indexes on crawl group and crawl instance.
var Schema = buildSchema()

func buildSchema() string {
	var b strings.Builder
	b.WriteString(crawlInstanceDDL)
	for _, name := range Collections {
		switch {
		case name == CrawlInstances:
		case IsEventCollection(name):
			fmt.Fprintf(&b, eventDDL, name)
		default:
			fmt.Fprintf(&b, documentDDL, name)
		}
	}
	for _, name := range indexedCollections {
		fmt.Fprintf(&b, indexDDL, name)
	}
	return b.String()
}
