package store

import (
	"bufio"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
)

// Compression selects the codec for snapshot payloads.
type Compression byte

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionSnappy
	CompressionLZ4
)

var snapshotMagic = []byte("QSNP")

const snapshotVersion = 1

// ParseCompression maps a config value to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "snappy":
		return CompressionSnappy, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return CompressionNone, errors.InvalidConfigurationf("unknown snapshot compression %q", name)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	default:
		return "none"
	}
}

// WriteSnapshot serializes every quad of src as N-Quads, compressed with c.
// The stream starts with a 6-byte header: magic, version, compression.
func WriteSnapshot(w io.Writer, src QuadStore, c Compression) (int, error) {
	header := append(append([]byte{}, snapshotMagic...), snapshotVersion, byte(c))
	if _, err := w.Write(header); err != nil {
		return 0, errors.Wrap(err, "write snapshot header")
	}

	payload, err := compressWriter(w, c)
	if err != nil {
		return 0, err
	}

	buf := bufio.NewWriter(payload)
	written := 0
	for q, err := range src.Find(rdf.Node{}, rdf.Node{}, rdf.Node{}, rdf.Node{}) {
		if err != nil {
			payload.Close()
			return written, errors.Wrap(err, "read quads for snapshot")
		}
		if _, err := buf.WriteString(q.NQuads() + "\n"); err != nil {
			payload.Close()
			return written, errors.Wrap(err, "write snapshot quad")
		}
		written++
	}
	if err := buf.Flush(); err != nil {
		payload.Close()
		return written, errors.Wrap(err, "flush snapshot")
	}
	if err := payload.Close(); err != nil {
		return written, errors.Wrap(err, "close snapshot codec")
	}
	return written, nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot into dst and returns
// the number of statements read.
func ReadSnapshot(r io.Reader, dst Writer) (int, error) {
	header := make([]byte, len(snapshotMagic)+2)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, errors.Wrap(err, "read snapshot header")
	}
	if string(header[:len(snapshotMagic)]) != string(snapshotMagic) {
		return 0, errors.New("not a quarry snapshot")
	}
	if v := header[len(snapshotMagic)]; v != snapshotVersion {
		return 0, errors.Newf("unsupported snapshot version %d", v)
	}

	payload, err := decompressReader(r, Compression(header[len(snapshotMagic)+1]))
	if err != nil {
		return 0, err
	}
	defer payload.Close()

	scanner := bufio.NewScanner(payload)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	read := 0
	line := 0
	for scanner.Scan() {
		line++
		q, ok, err := rdf.ParseNQuad(scanner.Text())
		if err != nil {
			return read, errors.Wrapf(err, "snapshot line %d", line)
		}
		if !ok {
			continue
		}
		if err := dst.Assert(q); err != nil {
			return read, errors.Wrapf(err, "snapshot line %d", line)
		}
		read++
	}
	if err := scanner.Err(); err != nil {
		return read, errors.Wrap(err, "read snapshot payload")
	}
	return read, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func compressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, "create zstd encoder")
		}
		return enc, nil
	case CompressionSnappy:
		return snappy.NewBufferedWriter(w), nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, errors.NotSupportedf("snapshot compression %d", c)
	}
}

func decompressReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "create zstd decoder")
		}
		return dec.IOReadCloser(), nil
	case CompressionSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, errors.NotSupportedf("snapshot compression %d", c)
	}
}
