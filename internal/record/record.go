package record

// Keys is the canonical field set of a trial record, in output order. Every
// record carries all of these; the normalizer fills unknowns with "".
var Keys = []string{
	"title",
	"trial_id",
	"phase",
	"condition",
	"intervention",
	"sponsor",
	"outcome",
	"conclusions",
	"summary",
}

// GroupKeys is the per-study-group field set, in output order.
var GroupKeys = []string{
	"description",
	"group_type",
	"drugs",
	"orr",
	"pfs",
	"os",
}

// Source identifies where a record came from, for logging and manual retry.
type Source struct {
	Title   string
	URL     string
	Page    int
	Listing int
}

// Record is the standardized shape emitted for one trial. Fields always
// contains every entry of Keys. Unprocessed marks a record whose article could
// not be summarized, as opposed to one that was summarized to empty fields.
type Record struct {
	Fields      map[string]string
	Groups      []map[string]string
	Unprocessed bool
	Source      Source
}

// New returns a record with the complete key set and empty values.
func New() Record {
	f := make(map[string]string, len(Keys))
	for _, k := range Keys {
		f[k] = ""
	}
	return Record{Fields: f}
}

// NewGroup returns a study-group map with the complete group key set.
func NewGroup() map[string]string {
	g := make(map[string]string, len(GroupKeys))
	for _, k := range GroupKeys {
		g[k] = ""
	}
	return g
}

// Unprocessed returns the sentinel record for an item whose summarization
// failed. All fields are empty and the record is tagged for manual review.
func Unprocessed(src Source) Record {
	r := New()
	r.Unprocessed = true
	r.Source = src
	return r
}
