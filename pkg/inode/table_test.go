package inode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/cache"
	"github.com/weberc2/blockfs/pkg/device"
	. "github.com/weberc2/blockfs/pkg/types"
)

func testTable(t *testing.T, sectors Sector) (*Table, *countingAllocator) {
	t.Helper()
	fm := alloc.NewFreeMap(sectors)
	// sector 0 is the nil pointer; 1 and 2 hold the tests' metadata
	fm.Reserve(0, 3)
	counting := &countingAllocator{inner: fm}
	dev := device.NewMemDevice(sectors)
	return NewTable(cache.New(dev, cache.DefaultSlots), counting), counting
}

func mustCreate(t *testing.T, table *Table, sector Sector, length Byte) {
	t.Helper()
	// the metadata sector itself comes from outside the table
	if err := table.Create(sector, length); err != nil {
		t.Fatalf("Create(): unexpected err: %v", err)
	}
}

func TestTableWriteReadRoundTrip(t *testing.T) {
	table, _ := testTable(t, 256)
	mustCreate(t, table, 1, 0)

	h := table.Open(1)
	defer func() {
		if err := table.Close(h); err != nil {
			t.Fatalf("Close(): unexpected err: %v", err)
		}
	}()

	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	n, err := table.WriteAt(h, payload, 0)
	if err != nil {
		t.Fatalf("WriteAt(): unexpected err: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("WriteAt(): wanted %d bytes; found %d", len(payload), n)
	}

	length, err := table.Length(h)
	if err != nil {
		t.Fatalf("Length(): unexpected err: %v", err)
	}
	if length != 5000 {
		t.Fatalf("Length(): wanted 5000; found %d", length)
	}

	found := make([]byte, 5000)
	n, err = table.ReadAt(h, found, 0)
	if err != nil {
		t.Fatalf("ReadAt(): unexpected err: %v", err)
	}
	if n != len(found) {
		t.Fatalf("ReadAt(): wanted %d bytes; found %d", len(found), n)
	}
	if !bytes.Equal(payload, found) {
		t.Fatal("ReadAt(): contents differ from written payload")
	}
}

func TestTableUnalignedChunks(t *testing.T) {
	table, _ := testTable(t, 256)
	mustCreate(t, table, 1, 0)

	h := table.Open(1)
	defer table.Close(h)

	payload := make([]byte, 3000)
	for i := range payload {
		payload[i] = byte(i % 253)
	}

	// write in awkward chunk sizes straddling sector boundaries
	var off Byte
	for _, chunk := range []int{1, 511, 513, 700, 1275} {
		n, err := table.WriteAt(h, payload[off:int(off)+chunk], off)
		if err != nil {
			t.Fatalf("WriteAt(off=%d): unexpected err: %v", off, err)
		}
		if n != chunk {
			t.Fatalf("WriteAt(off=%d): wanted %d bytes; found %d",
				off, chunk, n)
		}
		off += Byte(chunk)
	}

	// read back in different chunk sizes
	found := make([]byte, 3000)
	off = 0
	for _, chunk := range []int{100, 412, 512, 1000, 976} {
		n, err := table.ReadAt(h, found[off:int(off)+chunk], off)
		if err != nil {
			t.Fatalf("ReadAt(off=%d): unexpected err: %v", off, err)
		}
		if n != chunk {
			t.Fatalf("ReadAt(off=%d): wanted %d bytes; found %d",
				off, chunk, n)
		}
		off += Byte(chunk)
	}
	if !bytes.Equal(payload, found) {
		t.Fatal("chunked round trip: contents differ")
	}
}

func TestTableReadPastEnd(t *testing.T) {
	table, _ := testTable(t, 64)
	mustCreate(t, table, 1, 100)

	h := table.Open(1)
	defer table.Close(h)

	buf := make([]byte, 200)
	n, err := table.ReadAt(h, buf, 50)
	if err != nil {
		t.Fatalf("ReadAt(): unexpected err: %v", err)
	}
	if n != 50 {
		t.Fatalf("ReadAt() past end: wanted 50 bytes; found %d", n)
	}

	n, err = table.ReadAt(h, buf, 100)
	if err != nil {
		t.Fatalf("ReadAt() at end: unexpected err: %v", err)
	}
	if n != 0 {
		t.Fatalf("ReadAt() at end: wanted 0 bytes; found %d", n)
	}
}

func TestTableGrowZeroFills(t *testing.T) {
	table, _ := testTable(t, 256)
	mustCreate(t, table, 1, 0)

	h := table.Open(1)
	defer table.Close(h)

	if _, err := table.WriteAt(h, []byte{0xFF}, 0); err != nil {
		t.Fatalf("WriteAt(): unexpected err: %v", err)
	}
	// writing far past the end grows through a zero-filled gap
	if _, err := table.WriteAt(h, []byte{0xEE}, 4000); err != nil {
		t.Fatalf("WriteAt(): unexpected err: %v", err)
	}

	buf := make([]byte, 4001)
	if _, err := table.ReadAt(h, buf, 0); err != nil {
		t.Fatalf("ReadAt(): unexpected err: %v", err)
	}
	if buf[0] != 0xFF || buf[4000] != 0xEE {
		t.Fatal("grow lost previously written bytes")
	}
	for i := 1; i < 4000; i++ {
		if buf[i] != 0 {
			t.Fatalf("gap byte %d: wanted 0; found %d", i, buf[i])
		}
	}
}

func TestTableOpenDedup(t *testing.T) {
	table, _ := testTable(t, 64)
	mustCreate(t, table, 1, 0)
	mustCreate(t, table, 2, 0)

	h1 := table.Open(1)
	h2 := table.Open(1)
	other := table.Open(2)

	if h1 != h2 {
		t.Fatal("Open(): same sector produced distinct handles")
	}
	if h1 == other {
		t.Fatal("Open(): distinct sectors shared a handle")
	}
	if count := table.OpenCount(); count != 2 {
		t.Fatalf("OpenCount(): wanted 2; found %d", count)
	}

	h3 := table.Reopen(h1)
	if h3 != h1 {
		t.Fatal("Reopen(): produced a distinct handle")
	}

	for _, h := range []*Handle{h1, h2, h3, other} {
		if err := table.Close(h); err != nil {
			t.Fatalf("Close(): unexpected err: %v", err)
		}
	}
	if count := table.OpenCount(); count != 0 {
		t.Fatalf("OpenCount(): wanted 0; found %d", count)
	}
}

func TestTableDeferredDelete(t *testing.T) {
	table, counting := testTable(t, 512)
	mustCreate(t, table, 1, 0)

	h := table.Open(1)
	payload := make([]byte, 100*SectorSize)
	if _, err := table.WriteAt(h, payload, 0); err != nil {
		t.Fatalf("WriteAt(): unexpected err: %v", err)
	}
	netOpen := counting.net()

	h2 := table.Open(1)
	h.Remove()

	// data stays readable while any opener remains
	buf := make([]byte, 10)
	if n, err := table.ReadAt(h2, buf, 0); err != nil || n != 10 {
		t.Fatalf("ReadAt() after Remove(): wanted 10 bytes; found %d (%v)",
			n, err)
	}
	if err := table.Close(h); err != nil {
		t.Fatalf("Close(): unexpected err: %v", err)
	}
	if n, err := table.ReadAt(h2, buf, 0); err != nil || n != 10 {
		t.Fatalf(
			"ReadAt() after first Close(): wanted 10 bytes; found %d (%v)",
			n, err)
	}
	if counting.net() != netOpen {
		t.Fatal("sectors reclaimed before the last close")
	}

	// the last close reclaims data, index, and metadata sectors
	if err := table.Close(h2); err != nil {
		t.Fatalf("Close(): unexpected err: %v", err)
	}
	released := netOpen - counting.net()
	// every data and index sector plus the metadata sector itself
	if wanted := int(BlockCount(100 * SectorSize)); released != wanted {
		t.Fatalf("last close released %d sectors; wanted %d",
			released, wanted)
	}
}

func TestTableDenyWrite(t *testing.T) {
	table, _ := testTable(t, 64)
	mustCreate(t, table, 1, 100)

	h := table.Open(1)
	defer table.Close(h)

	h.DenyWrite()
	n, err := table.WriteAt(h, []byte("denied"), 0)
	if !errors.Is(err, WriteDeniedErr) {
		t.Fatalf("WriteAt(): wanted WriteDeniedErr; found %v", err)
	}
	if n != 0 {
		t.Fatalf("WriteAt() while denied: wanted 0 bytes; found %d", n)
	}

	// reads are unaffected
	buf := make([]byte, 10)
	if n, err := table.ReadAt(h, buf, 0); err != nil || n != 10 {
		t.Fatalf("ReadAt() while denied: wanted 10 bytes; found %d (%v)",
			n, err)
	}

	h.AllowWrite()
	if _, err := table.WriteAt(h, []byte("allowed"), 0); err != nil {
		t.Fatalf("WriteAt() after AllowWrite(): unexpected err: %v", err)
	}
}

func TestTableWriteExhaustion(t *testing.T) {
	// tiny device: growth beyond it must fail without corrupting the
	// committed prefix
	table, _ := testTable(t, 16)
	mustCreate(t, table, 1, 0)

	h := table.Open(1)
	defer table.Close(h)

	small := []byte("hello")
	if _, err := table.WriteAt(h, small, 0); err != nil {
		t.Fatalf("WriteAt(): unexpected err: %v", err)
	}

	huge := make([]byte, 100*SectorSize)
	n, err := table.WriteAt(h, huge, 0)
	if !errors.Is(err, AllocationExhaustedErr) {
		t.Fatalf("WriteAt(): wanted AllocationExhaustedErr; found %v", err)
	}
	// the short write is confined to the pre-existing length
	if n != len(small) {
		t.Fatalf("WriteAt(): wanted %d bytes; found %d", len(small), n)
	}

	length, err := table.Length(h)
	if err != nil {
		t.Fatalf("Length(): unexpected err: %v", err)
	}
	if length != Byte(len(small)) {
		t.Fatalf("Length() after failed grow: wanted %d; found %d",
			len(small), length)
	}
}
