// Package fasta loads sequence records for clustering.
package fasta

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
)

// ErrEmpty is returned when a file holds no records.
var ErrEmpty = errors.New("no sequences")

// Record is one named sequence, upper-cased.
type Record struct {
	ID  string
	Seq string
}

// Load reads every record of a FASTA or FASTQ file. Gzip input is detected
// automatically and "-" reads standard input.
func Load(path string) ([]Record, error) {
	seq.ValidateSeq = false

	r, err := fastx.NewDefaultReader(path)
	if errors.Is(err, xopen.ErrNoContent) {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	var out []Record
	seen := make(map[string]struct{})
	for {
		rec, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		id := string(rec.ID)
		if _, dup := seen[id]; dup {
			log.Warn().Str("id", id).Str("path", path).Msg("Duplicate sequence id")
		}
		seen[id] = struct{}{}
		out = append(out, Record{ID: id, Seq: string(bytes.ToUpper(rec.Seq.Seq))})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	log.Debug().Int("records", len(out)).Str("path", path).Msg("Loaded sequences")
	return out, nil
}

// Split returns the ids and sequences of records as parallel slices.
func Split(records []Record) (ids, seqs []string) {
	ids = make([]string, len(records))
	seqs = make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
		seqs[i] = r.Seq
	}
	return ids, seqs
}
