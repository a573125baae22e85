package internal

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

// InspectRow is one keyspace entry rendered on the inspector page.
type InspectRow struct {
	Key       string
	Namespace string
	EntityID  string
	Timestamp string
	Detail    string
}

type pageData struct {
	Prefix string
	Items  []InspectRow
}

// InspectorMux serves a one-page view of the badger keyspace for local
// debugging under /inspect. Filter with ?prefix=, e.g. /inspect?prefix=post:
// The caller owns the mux and may hang more handlers on it.
func InspectorMux(db *badger.DB) *http.ServeMux {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "post:"
		}
		data := pageData{Prefix: prefix}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	return mux
}

func mapRow(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Namespace: parts[0],
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    strconv.Itoa(len(val)) + " bytes",
	}
	for _, part := range parts[1:] {
		// The 19-digit padded segments are nanosecond timestamps.
		if len(part) == 19 {
			if tsNano, err := strconv.ParseInt(part, 10, 64); err == nil {
				row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
				continue
			}
		}
		row.EntityID = part
		if len(row.EntityID) > 8 {
			row.EntityID = row.EntityID[:8]
		}
	}
	return row
}
