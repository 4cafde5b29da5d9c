package dataset

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"socialsync/internal/platform/logger"
)

const (
	maxLineSize  = 32 * 1024 * 1024
	sampleRawMax = 2048
)

// Item is one raw dataset record
type Item = map[string]any

// Reader streams items from an export
type Reader struct {
	r  io.ReadCloser
	gz *gzip.Reader

	// exactly one of dec (array) and sc (ndjson) is set
	dec *json.Decoder
	sc  *bufio.Scanner

	err     error
	items   int
	skipped int
	bytes   int64
	sampled bool
}

// NewReader sniffs r for gzip and for array vs NDJSON layout. r is closed by Close
func NewReader(r io.ReadCloser) (*Reader, error) {
	rd := &Reader{r: r}
	br := bufio.NewReader(r)
	in := br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Join(err, r.Close())
		}
		rd.gz = gz
		in = bufio.NewReader(gz)
	}

	first, err := firstByte(in)
	switch {
	case errors.Is(err, io.EOF):
		rd.err = io.EOF
		return rd, nil
	case err != nil:
		return nil, errors.Join(err, rd.Close())
	}

	if first == '[' {
		rd.dec = json.NewDecoder(in)
		rd.dec.UseNumber()
		if _, err := rd.dec.Token(); err != nil {
			return nil, errors.Join(fmt.Errorf("dataset: %w", err), rd.Close())
		}
		return rd, nil
	}
	rd.sc = bufio.NewScanner(in)
	rd.sc.Buffer(make([]byte, 512*1024), maxLineSize)
	return rd, nil
}

// firstByte returns the first non space byte without consuming it
func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case 0xef:
			// UTF-8 BOM
			if rest, _ := br.Peek(2); bytes.Equal(rest, []byte{0xbb, 0xbf}) {
				_, _ = br.Discard(2)
				continue
			}
		}
		return b, br.UnreadByte()
	}
}

// Next returns the next item; io.EOF when done
func (rd *Reader) Next() (Item, error) {
	if rd.err != nil {
		return nil, rd.err
	}
	if rd.dec != nil {
		return rd.nextArray()
	}
	return rd.nextLine()
}

func (rd *Reader) nextArray() (Item, error) {
	if !rd.dec.More() {
		if _, err := rd.dec.Token(); err != nil {
			rd.err = fmt.Errorf("dataset: %w", err)
			return nil, rd.err
		}
		rd.err = io.EOF
		return nil, io.EOF
	}
	start := rd.dec.InputOffset()
	var raw json.RawMessage
	if err := rd.dec.Decode(&raw); err != nil {
		rd.err = fmt.Errorf("dataset: item %d: %w", rd.items+rd.skipped, err)
		return nil, rd.err
	}
	rd.bytes += rd.dec.InputOffset() - start

	item, err := decodeItem(raw)
	if err != nil {
		// valid JSON that is not an object, e.g. a stray null
		rd.skipped++
		return rd.nextArray()
	}
	rd.sample(raw)
	rd.items++
	return item, nil
}

func (rd *Reader) nextLine() (Item, error) {
	for {
		if !rd.sc.Scan() {
			if err := rd.sc.Err(); err != nil {
				rd.err = err
				return nil, err
			}
			rd.err = io.EOF
			return nil, io.EOF
		}
		line := bytes.TrimSpace(rd.sc.Bytes())
		rd.bytes += int64(len(rd.sc.Bytes()) + 1)
		if len(line) == 0 {
			continue
		}
		item, err := decodeItem(line)
		if err != nil {
			rd.skipped++
			continue
		}
		rd.sample(line)
		rd.items++
		return item, nil
	}
}

func decodeItem(b []byte) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var item Item
	if err := dec.Decode(&item); err != nil {
		return nil, err
	}
	if item == nil {
		return nil, errors.New("dataset: item is not an object")
	}
	return item, nil
}

// sample logs the first item of an export at debug
func (rd *Reader) sample(b []byte) {
	if rd.sampled {
		return
	}
	rd.sampled = true
	l := logger.Named("dataset")
	l.Debug().
		Int("item_bytes", len(b)).
		Str("sample_raw", truncateUTF8(b, sampleRawMax)).
		Msg("dataset: sample item")
}

// ReadAll drains rd
func (rd *Reader) ReadAll() ([]Item, error) {
	var out []Item
	for {
		it, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, it)
	}
}

// Close closes the gzip stream and the underlying reader
func (rd *Reader) Close() error {
	var first error
	if rd.gz != nil {
		if err := rd.gz.Close(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			first = err
		}
	}
	if rd.r != nil {
		if err := rd.r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stats returns items read, items skipped and uncompressed bytes consumed so far
func (rd *Reader) Stats() (items, skipped int, bytes int64) {
	return rd.items, rd.skipped, rd.bytes
}

// truncateUTF8 cuts b to at most max bytes on a rune boundary and marks the cut
func truncateUTF8(b []byte, max int) string {
	if max <= 0 || len(b) <= max {
		return string(b)
	}
	i := max
	for i > 0 && (b[i]&0xC0) == 0x80 {
		i--
	}
	if i <= 0 {
		i = max
	}
	return string(b[:i]) + "..."
}
