package container

import (
	"testing"

	"sevenz-forensic/internal/errz"
)

func TestReadPlanRejectsBadSignature(t *testing.T) {
	sink := &memSink{}
	sink.Write(make([]byte, SignatureHeaderSize))
	sink.buf.Bytes()[0] = 0x00 // corrupt the magic

	_, err := ReadPlan(sink)
	if !errz.Is(err, errz.ErrBadSignature) {
		t.Fatalf("ReadPlan error = %v, want ErrBadSignature", err)
	}
}

func TestReadPlanRejectsBadStartHeaderCRC(t *testing.T) {
	sink, _ := buildSimpleArchive(t)

	raw := sink.buf.Bytes()
	raw[15] ^= 0xFF // corrupt a byte inside the start header, after the CRC field

	_, err := ReadPlan(sink)
	if !errz.Is(err, errz.ErrBadHeaderCRC) {
		t.Fatalf("ReadPlan error = %v, want ErrBadHeaderCRC", err)
	}
}

func TestReadPlanRejectsTruncatedArchive(t *testing.T) {
	sink, _ := buildSimpleArchive(t)

	full := sink.buf.Bytes()
	truncated := &memSink{}
	truncated.Write(full[:len(full)-5])

	_, err := ReadPlan(truncated)
	if err == nil {
		t.Fatal("expected ReadPlan to fail on a truncated archive")
	}
}

func TestReadPlanPerFileCRCs(t *testing.T) {
	sink, spec := buildSimpleArchive(t)

	plan, err := ReadPlan(sink)
	if err != nil {
		t.Fatalf("ReadPlan: %v", err)
	}
	if len(plan.PerFileCRCs) != len(spec.PerFileCRCs) {
		t.Fatalf("len(PerFileCRCs) = %d, want %d", len(plan.PerFileCRCs), len(spec.PerFileCRCs))
	}
	for i, crc := range spec.PerFileCRCs {
		if plan.PerFileCRCs[i] != crc {
			t.Errorf("PerFileCRCs[%d] = %x, want %x", i, plan.PerFileCRCs[i], crc)
		}
	}
	if plan.FolderUnpackCRC != spec.FolderUnpackCRC {
		t.Errorf("FolderUnpackCRC = %x, want %x", plan.FolderUnpackCRC, spec.FolderUnpackCRC)
	}
}
