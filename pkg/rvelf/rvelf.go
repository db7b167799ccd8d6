// Package rvelf is the narrow boundary between an on-disk RISC-V ELF
// executable and the rest of the compiler: it yields a byte image of
// loadable segments plus an entry point, nothing more. Dynamic linking,
// relocations, and non-PT_LOAD segments are not modeled (spec.md §6: "only
// static code and initialized data are consulted; dynamic linking is
// unsupported").
package rvelf

import (
	"debug/elf"
	"sort"

	"github.com/unicorn-sh/unicorn/pkg/errs"
)

// Segment is one PT_LOAD segment's memory image.
type Segment struct {
	VAddr uint64
	Data  []byte
	Exec  bool // whether the segment is mapped executable (PF_X)
}

// Image is the decoded, loader-independent view of a program: its static
// segments and entry address. This is the only thing the rest of the
// compiler ever sees of the original ELF file.
type Image struct {
	Segments []Segment
	Entry    uint64
}

// Load reads path as a 64-bit RISC-V ELF executable and returns its static
// image. Non-PT_LOAD segments, section headers, and symbol tables are
// ignored.
func Load(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, &errs.ParseError{Msg: "opening ELF file", Err: err}
	}
	defer f.Close()
	return FromFile(f)
}

// FromFile builds an Image from an already-open *elf.File, validating that
// it targets 64-bit RISC-V.
func FromFile(f *elf.File) (*Image, error) {
	if f.Class != elf.ELFCLASS64 {
		return nil, &errs.ParseError{Msg: "not a 64-bit ELF"}
	}
	if f.Machine != elf.EM_RISCV {
		return nil, &errs.ParseError{Msg: "not a RISC-V ELF"}
	}
	if f.Type != elf.ET_EXEC && f.Type != elf.ET_DYN {
		return nil, &errs.ParseError{Msg: "unsupported ELF type (only ET_EXEC/ET_DYN static images are consulted)"}
	}

	img := &Image{Entry: f.Entry}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, p.Memsz)
		n, err := p.ReadAt(data[:p.Filesz], 0)
		if err != nil && n == 0 {
			return nil, &errs.ParseError{Msg: "reading PT_LOAD segment", Err: err}
		}
		img.Segments = append(img.Segments, Segment{
			VAddr: p.Vaddr,
			Data:  data,
			Exec:  p.Flags&elf.PF_X != 0,
		})
	}
	sort.Slice(img.Segments, func(i, j int) bool { return img.Segments[i].VAddr < img.Segments[j].VAddr })
	return img, nil
}

// FromRaw builds an Image directly from a code blob placed at codeAddr and
// an optional data blob placed at dataAddr, bypassing ELF parsing
// entirely. This exists for tests and for the seed scenarios in spec.md §8,
// which hand-assemble a handful of instructions rather than linking a real
// binary.
func FromRaw(code []byte, codeAddr uint64, data []byte, dataAddr uint64, entry uint64) *Image {
	img := &Image{Entry: entry}
	if len(code) > 0 {
		img.Segments = append(img.Segments, Segment{VAddr: codeAddr, Data: code, Exec: true})
	}
	if len(data) > 0 {
		img.Segments = append(img.Segments, Segment{VAddr: dataAddr, Data: data, Exec: false})
	}
	return img
}

// ReadWord returns the little-endian 32-bit word at addr, and false if addr
// falls outside every executable segment.
func (img *Image) ReadWord(addr uint64) (uint32, bool) {
	for _, s := range img.Segments {
		if !s.Exec {
			continue
		}
		if addr < s.VAddr || addr+4 > s.VAddr+uint64(len(s.Data)) {
			continue
		}
		off := addr - s.VAddr
		return uint32(s.Data[off]) | uint32(s.Data[off+1])<<8 | uint32(s.Data[off+2])<<16 | uint32(s.Data[off+3])<<24, true
	}
	return 0, false
}

// CodeRange returns the half-open [lo, hi) address range spanned by
// executable segments, used by the Model Builder to enumerate every static
// instruction address.
func (img *Image) CodeRange() (lo, hi uint64) {
	lo, hi = ^uint64(0), 0
	for _, s := range img.Segments {
		if !s.Exec {
			continue
		}
		if s.VAddr < lo {
			lo = s.VAddr
		}
		if end := s.VAddr + uint64(len(s.Data)); end > hi {
			hi = end
		}
	}
	if hi == 0 {
		lo = 0
	}
	return lo, hi
}

// InitialMemory returns the (address, byte) pairs needed to seed the
// symbolic memory array's initial Write chain: every byte of every loaded
// segment (code and data alike — code is addressable too, matching
// spec.md's single byte-addressed memory array).
func (img *Image) InitialMemory() func(yield func(addr uint64, b byte) bool) {
	return func(yield func(addr uint64, b byte) bool) {
		for _, s := range img.Segments {
			for i, b := range s.Data {
				if b == 0 {
					continue // ArrayConst(0) already supplies the zero fill
				}
				if !yield(s.VAddr+uint64(i), b) {
					return
				}
			}
		}
	}
}
