// Package bsa reads Bethesda archive files.
//
// Two unrelated layouts share the extension. Morrowind archives open
// with the little-endian number 0x100 and hold a flat file table with
// no compression. Later archives open with "BSA\x00" and a version of
// 103, 104 or 105, group files into folders, and compress payloads
// with zlib, or lz4 frames from version 105 on. Reading parses the
// tables; payloads are pulled lazily with ExtractFile. Writing is not
// supported.
package bsa

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/encoding/charmap"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
)

// Archive flag bits of the 103+ layout.
const (
	FlagIncludeFolderNames = 0x0001
	FlagIncludeFileNames   = 0x0002
	FlagCompressed         = 0x0004
	FlagEmbedFileNames     = 0x0100
)

// sizeCompressionToggle flips the archive-wide compression default for
// one file.
const sizeCompressionToggle = 0x40000000

// VersionMorrowind is the magic-as-version of the flat early layout.
const VersionMorrowind uint32 = 0x100

const maxFileSize = 1 << 30

var magic103 = []byte("BSA\x00")

// File is one archived file.
type File struct {
	Name   string
	Hash   uint64
	Offset uint64

	rawSize uint32
}

// Size returns the stored payload size in bytes, compression included.
func (f *File) Size() uint32 { return f.rawSize &^ sizeCompressionToggle }

// Folder is one folder of the 103+ layout. Morrowind archives hold a
// single synthetic folder with an empty name.
type Folder struct {
	Name  string
	Hash  uint64
	Files []*File
}

// Data is one parsed archive.
type Data struct {
	format.Lifecycle

	version      uint32
	archiveFlags uint32
	fileFlags    uint32
	folders      []*Folder

	// morrowind payload base, the byte after the hash table
	dataStart int64
}

// Version reports the archive layout: 0x100, 103, 104 or 105.
func (d *Data) Version() uint32 { return d.version }

// UserVersion is always zero; archives carry no user version.
func (d *Data) UserVersion() uint32 { return 0 }

// ArchiveFlags returns the 103+ archive flags, zero on Morrowind
// archives.
func (d *Data) ArchiveFlags() uint32 { return d.archiveFlags }

// FileFlags returns the 103+ content type flags.
func (d *Data) FileFlags() uint32 { return d.fileFlags }

// Folders returns the folder table, valid after Read.
func (d *Data) Folders() []*Folder { return d.folders }

// FindFile looks a file up by folder and file name.
func (d *Data) FindFile(folder, name string) (*File, error) {
	for _, fo := range d.folders {
		if fo.Name != folder {
			continue
		}
		for _, f := range fo.Files {
			if f.Name == name {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("no file %q in folder %q", name, folder)
}

func (d *Data) inspect(s *codec.Stream) error {
	var head [8]byte
	if err := s.ReadFull(head[:]); err != nil {
		return &format.MismatchError{Format: "BSA", Reason: "too short for a magic"}
	}
	if binary.LittleEndian.Uint32(head[:4]) == VersionMorrowind {
		d.version = VersionMorrowind
		return nil
	}
	if !bytes.Equal(head[:4], magic103) {
		return &format.MismatchError{Format: "BSA", Reason: "missing BSA magic"}
	}
	switch v := binary.LittleEndian.Uint32(head[4:]); v {
	case 103, 104, 105:
		d.version = v
		return nil
	default:
		return &format.VersionError{Format: "BSA", Version: v}
	}
}

// InspectQuick checks the magic and version without moving the cursor.
func (d *Data) InspectQuick(s *codec.Stream) error {
	return d.Transition(format.StateInspected, s.PreservePos(func() error {
		return d.inspect(s)
	}))
}

// Inspect is identical to InspectQuick.
func (d *Data) Inspect(s *codec.Stream) error {
	return d.InspectQuick(s)
}

// Read parses the folder and file tables. Payload bytes stay on the
// stream for ExtractFile.
func (d *Data) Read(s *codec.Stream) error {
	return d.Transition(format.StateRead, d.read(s))
}

func (d *Data) read(s *codec.Stream) error {
	if err := d.inspect(s); err != nil {
		return err
	}
	if d.version == VersionMorrowind {
		// inspect consumed magic and hash offset, rewind to the offset
		pos, err := s.Pos()
		if err != nil {
			return err
		}
		if err := s.Seek(pos - 4); err != nil {
			return err
		}
		return d.readMorrowind(s)
	}
	return d.readModern(s)
}

func (d *Data) readMorrowind(s *codec.Stream) error {
	var fixed [8]byte
	if err := s.ReadFull(fixed[:]); err != nil {
		return err
	}
	hashOffset := binary.LittleEndian.Uint32(fixed[:4])
	count := binary.LittleEndian.Uint32(fixed[4:])
	if count > 1<<20 {
		return &codec.SizeError{What: "archive file count", Length: int64(count), Max: 1 << 20}
	}

	files := make([]*File, count)
	for i := range files {
		var rec [8]byte
		if err := s.ReadFull(rec[:]); err != nil {
			return err
		}
		files[i] = &File{
			rawSize: binary.LittleEndian.Uint32(rec[:4]),
			Offset:  uint64(binary.LittleEndian.Uint32(rec[4:])),
		}
	}
	nameOffsets := make([]uint32, count)
	for i := range nameOffsets {
		var off [4]byte
		if err := s.ReadFull(off[:]); err != nil {
			return err
		}
		nameOffsets[i] = binary.LittleEndian.Uint32(off[:])
	}

	namesLen := int64(hashOffset) - int64(12*count)
	if namesLen < 0 {
		return &format.ContentError{Format: "BSA", Message: "hash table offset inside the file table"}
	}
	names := make([]byte, namesLen)
	if err := s.ReadFull(names); err != nil {
		return err
	}
	for i, off := range nameOffsets {
		if int64(off) >= namesLen {
			return &format.ContentError{Format: "BSA", Message: fmt.Sprintf("name offset %d outside the name table", off)}
		}
		end := bytes.IndexByte(names[off:], 0)
		if end < 0 {
			return &format.ContentError{Format: "BSA", Message: "unterminated file name"}
		}
		name, err := decodeName(names[off : int(off)+end])
		if err != nil {
			return err
		}
		files[i].Name = name
	}

	for i := range files {
		var h [8]byte
		if err := s.ReadFull(h[:]); err != nil {
			return err
		}
		files[i].Hash = binary.LittleEndian.Uint64(h[:])
	}

	pos, err := s.Pos()
	if err != nil {
		return err
	}
	d.dataStart = pos
	d.folders = []*Folder{{Files: files}}
	return nil
}

func (d *Data) readModern(s *codec.Stream) error {
	var hdr [28]byte
	if err := s.ReadFull(hdr[:]); err != nil {
		return err
	}
	d.archiveFlags = binary.LittleEndian.Uint32(hdr[4:])
	folderCount := binary.LittleEndian.Uint32(hdr[8:])
	fileCount := binary.LittleEndian.Uint32(hdr[12:])
	fileNamesLen := binary.LittleEndian.Uint32(hdr[20:])
	d.fileFlags = binary.LittleEndian.Uint32(hdr[24:])
	if folderCount > 1<<20 || fileCount > 1<<24 {
		return &format.ContentError{Format: "BSA", Message: "implausible folder or file count"}
	}

	type folderRec struct {
		hash  uint64
		count uint32
	}
	folderRecs := make([]folderRec, folderCount)
	recLen := 16
	if d.version == 105 {
		recLen = 24
	}
	rec := make([]byte, recLen)
	for i := range folderRecs {
		if err := s.ReadFull(rec); err != nil {
			return err
		}
		folderRecs[i] = folderRec{
			hash:  binary.LittleEndian.Uint64(rec),
			count: binary.LittleEndian.Uint32(rec[8:]),
		}
	}

	folders := make([]*Folder, folderCount)
	var total uint32
	for i, fr := range folderRecs {
		fo := &Folder{Hash: fr.hash}
		if d.archiveFlags&FlagIncludeFolderNames != 0 {
			name, err := readBzString(s)
			if err != nil {
				return err
			}
			fo.Name = name
		}
		fo.Files = make([]*File, fr.count)
		for j := range fo.Files {
			var frec [16]byte
			if err := s.ReadFull(frec[:]); err != nil {
				return err
			}
			fo.Files[j] = &File{
				Hash:    binary.LittleEndian.Uint64(frec[:]),
				rawSize: binary.LittleEndian.Uint32(frec[8:]),
				Offset:  uint64(binary.LittleEndian.Uint32(frec[12:])),
			}
		}
		total += fr.count
		folders[i] = fo
	}
	if total != fileCount {
		return &format.ContentError{
			Format:  "BSA",
			Message: fmt.Sprintf("folder records hold %d files, header promised %d", total, fileCount),
		}
	}

	if d.archiveFlags&FlagIncludeFileNames != 0 {
		names := make([]byte, fileNamesLen)
		if err := s.ReadFull(names); err != nil {
			return err
		}
		for _, fo := range folders {
			for _, f := range fo.Files {
				end := bytes.IndexByte(names, 0)
				if end < 0 {
					return &format.ContentError{Format: "BSA", Message: "file name table ran out early"}
				}
				name, err := decodeName(names[:end])
				if err != nil {
					return err
				}
				f.Name = name
				names = names[end+1:]
			}
		}
	}

	d.folders = folders
	return nil
}

// ExtractFile pulls one payload off the stream, stripping any embedded
// name prefix and undoing compression.
func (d *Data) ExtractFile(s *codec.Stream, f *File) ([]byte, error) {
	size := int64(f.Size())
	if size > maxFileSize {
		return nil, &codec.SizeError{What: "archived file", Length: size, Max: maxFileSize}
	}
	off := int64(f.Offset)
	if d.version == VersionMorrowind {
		off += d.dataStart
	}
	if err := s.Seek(off); err != nil {
		return nil, err
	}
	block := make([]byte, size)
	if err := s.ReadFull(block); err != nil {
		return nil, err
	}
	if d.version == VersionMorrowind {
		return block, nil
	}

	if d.version >= 104 && d.archiveFlags&FlagEmbedFileNames != 0 {
		if len(block) < 1 || len(block) < 1+int(block[0]) {
			return nil, &format.ContentError{Format: "BSA", Message: "embedded name overruns the file block"}
		}
		block = block[1+int(block[0]):]
	}

	compressed := d.archiveFlags&FlagCompressed != 0
	if f.rawSize&sizeCompressionToggle != 0 {
		compressed = !compressed
	}
	if !compressed {
		return block, nil
	}

	if len(block) < 4 {
		return nil, &format.ContentError{Format: "BSA", Message: "compressed block too short for its size field"}
	}
	want := binary.LittleEndian.Uint32(block)
	if want > maxFileSize {
		return nil, &codec.SizeError{What: "decompressed file", Length: int64(want), Max: maxFileSize}
	}
	var r io.Reader
	if d.version == 105 {
		r = lz4.NewReader(bytes.NewReader(block[4:]))
	} else {
		zr, err := zlib.NewReader(bytes.NewReader(block[4:]))
		if err != nil {
			return nil, &format.ContentError{Format: "BSA", Message: "bad zlib stream: " + err.Error()}
		}
		defer zr.Close()
		r = zr
	}
	out, err := io.ReadAll(io.LimitReader(r, int64(want)+1))
	if err != nil {
		return nil, &format.ContentError{Format: "BSA", Message: "bad compressed stream: " + err.Error()}
	}
	if uint32(len(out)) != want {
		return nil, &format.ContentError{
			Format:  "BSA",
			Message: fmt.Sprintf("file inflated to %d bytes, record promised %d", len(out), want),
		}
	}
	return out, nil
}

// Morrowind payloads sit relative to the end of the hash table.
// DataStart exposes that base for offset arithmetic.
func (d *Data) DataStart() int64 { return d.dataStart }

// Write is not supported for archives.
func (d *Data) Write(*codec.Stream) error {
	return &format.NotImplementedError{Format: "BSA", Op: "writing archives"}
}

// readBzString reads a length-prefixed name whose count includes the
// trailing NUL.
func readBzString(s *codec.Stream) (string, error) {
	n, err := s.ReadByte()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := s.ReadFull(buf); err != nil {
		return "", err
	}
	return decodeName(bytes.TrimRight(buf, "\x00"))
}

// decodeName converts an on-disk name from Windows-1252.
func decodeName(b []byte) (string, error) {
	return charmap.Windows1252.NewDecoder().String(string(b))
}

// Format registers BSA with the format registry.
type Format struct{}

func (Format) Name() string { return "BSA" }

func (Format) Extensions() []string { return []string{".bsa"} }

func (Format) New() (format.Data, error) { return &Data{}, nil }
