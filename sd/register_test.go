package sd

import (
	"errors"
	"testing"

	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/sim"
)

func TestCSDSectorCount(t *testing.T) {
	tests := []struct {
		name    string
		csd     CSD
		version uint8
		want    uint32
	}{
		{
			name:    "version 2",
			csd:     CSD{0: 0x40, 5: 0x59, 7: 0x00, 8: 0x3B, 9: 0x37},
			version: CSDVersion2,
			want:    (0x3B37 + 1) << 10,
		},
		{
			name:    "version 1 512-byte blocks",
			csd:     CSD{0: 0x00, 5: 0x59, 6: 0x00, 7: 0xFF, 8: 0xC0, 9: 0x00, 10: 0x00},
			version: CSDVersion1,
			want:    4096,
		},
		{
			name:    "version 1 1024-byte blocks",
			csd:     CSD{0: 0x00, 5: 0x5A, 6: 0x03, 7: 0xFF, 8: 0xC0, 9: 0x03, 10: 0x80},
			version: CSDVersion1,
			want:    4096 << 10,
		},
		{
			name:    "reserved structure",
			csd:     CSD{0: 0x80},
			version: 2,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.csd.Version(); got != tt.version {
				t.Errorf("Version() = %d, want %d", got, tt.version)
			}
			if got := tt.csd.SectorCount(); got != tt.want {
				t.Errorf("SectorCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCSDFields(t *testing.T) {
	csd := CSD{0: 0x00, 3: 0x32, 5: 0x5A, 6: 0x03, 7: 0xFF, 8: 0xC0, 9: 0x03, 10: 0xFF, 11: 0x80, 14: 0x30}

	if got := csd.CSizeV1(); got != 4095 {
		t.Errorf("CSizeV1() = %d, want 4095", got)
	}
	if got := csd.CSizeMult(); got != 7 {
		t.Errorf("CSizeMult() = %d, want 7", got)
	}
	if got := csd.ReadBlockLength(); got != 1024 {
		t.Errorf("ReadBlockLength() = %d, want 1024", got)
	}
	if got := csd.TransferSpeed(); got != 0x32 {
		t.Errorf("TransferSpeed() = %#02x, want 0x32", got)
	}
	if !csd.EraseBlockEnable() {
		t.Error("EraseBlockEnable() = false")
	}
	if got := csd.EraseSectorSize(); got != 128 {
		t.Errorf("EraseSectorSize() = %d, want 128", got)
	}
	if !csd.PermanentWriteProtect() || !csd.TemporaryWriteProtect() {
		t.Error("write protect bits not decoded")
	}
}

func TestCIDFields(t *testing.T) {
	cid := CID(sim.DefaultCID())

	if got := cid.ManufacturerID(); got != 0x53 {
		t.Errorf("ManufacturerID() = %#02x, want 0x53", got)
	}
	if got := cid.OEMID(); got != "SD" {
		t.Errorf("OEMID() = %q, want %q", got, "SD")
	}
	if got := cid.ProductName(); got != "SIMSD" {
		t.Errorf("ProductName() = %q, want %q", got, "SIMSD")
	}
	if major, minor := cid.Revision(); major != 1 || minor != 0 {
		t.Errorf("Revision() = %d.%d, want 1.0", major, minor)
	}
	if got := cid.SerialNumber(); got != 0x12345678 {
		t.Errorf("SerialNumber() = %#08x, want 0x12345678", got)
	}
	if year, month := cid.ManufactureDate(); year != 2024 || month != 6 {
		t.Errorf("ManufactureDate() = %d-%d, want 2024-6", year, month)
	}
	want := `MID=0x53 OID="SD" PNM="SIMSD" PRV=1.0 PSN=0x12345678 MDT=2024-06`
	if got := cid.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestOCRFields(t *testing.T) {
	tests := []struct {
		name string
		ocr  OCR
		done bool
		hc   bool
	}{
		{"busy", OCR{0x40, 0xFF, 0x80, 0x00}, false, false},
		{"standard", OCR{0x80, 0xFF, 0x80, 0x00}, true, false},
		{"high capacity", OCR{0xC0, 0xFF, 0x80, 0x00}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ocr.PowerUpDone(); got != tt.done {
				t.Errorf("PowerUpDone() = %v, want %v", got, tt.done)
			}
			if got := tt.ocr.HighCapacity(); got != tt.hc {
				t.Errorf("HighCapacity() = %v, want %v", got, tt.hc)
			}
			if got := tt.ocr.VoltageWindow(); got != 0x1FF {
				t.Errorf("VoltageWindow() = %#x, want 0x1ff", got)
			}
		})
	}
}

func TestReadRegisters(t *testing.T) {
	tests := []struct {
		class       sim.Class
		csdVersion  uint8
		highCap     bool
		capacityErr error
	}{
		{sim.ClassHighCapacity, CSDVersion2, true, nil},
		{sim.ClassStandardV2, CSDVersion1, false, pkg.ErrUnsupportedCSD},
		{sim.ClassStandardV1, CSDVersion1, false, pkg.ErrUnsupportedCSD},
	}

	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			c, peer, ctr := newReadyCard(t, sim.Config{Class: tt.class})

			csd, err := c.ReadCSD()
			if err != nil {
				t.Fatalf("ReadCSD() error = %v", err)
			}
			if csd != CSD(peer.CSD()) {
				t.Errorf("ReadCSD() = % X, want % X", csd, peer.CSD())
			}
			if got := csd.Version(); got != tt.csdVersion {
				t.Errorf("Version() = %d, want %d", got, tt.csdVersion)
			}

			n, err := c.SectorCount()
			if err != nil || n != peer.Sectors() {
				t.Errorf("SectorCount() = %d, %v, want %d", n, err, peer.Sectors())
			}

			capacity, err := c.Capacity()
			if !errors.Is(err, tt.capacityErr) {
				t.Errorf("Capacity() error = %v, want %v", err, tt.capacityErr)
			}
			if err == nil && capacity != peer.Sectors() {
				t.Errorf("Capacity() = %d, want %d", capacity, peer.Sectors())
			}

			cid, err := c.ReadCID()
			if err != nil {
				t.Fatalf("ReadCID() error = %v", err)
			}
			if cid != CID(sim.DefaultCID()) {
				t.Errorf("ReadCID() = % X", cid)
			}

			ocr, err := c.ReadOCR()
			if err != nil {
				t.Fatalf("ReadOCR() error = %v", err)
			}
			if !ocr.PowerUpDone() || ocr.HighCapacity() != tt.highCap {
				t.Errorf("ReadOCR() = % X, want high capacity %v", ocr, tt.highCap)
			}

			checkBalanced(t, ctr)
		})
	}
}

func TestCapacityBeforeInit(t *testing.T) {
	c, _, ctr := newTestCard(t, sim.Config{}, nil)

	if _, err := c.Capacity(); !errors.Is(err, pkg.ErrNotReady) {
		t.Errorf("Capacity() error = %v, want %v", err, pkg.ErrNotReady)
	}
	if _, err := c.ReadOCR(); !errors.Is(err, pkg.ErrNotReady) {
		t.Errorf("ReadOCR() error = %v, want %v", err, pkg.ErrNotReady)
	}
	if ctr.Bytes() != 0 {
		t.Errorf("bus traffic: %d bytes", ctr.Bytes())
	}
}

func TestWriteProtectBit(t *testing.T) {
	c, _, _ := newReadyCard(t, sim.Config{WriteProtected: true})

	csd, err := c.ReadCSD()
	if err != nil {
		t.Fatal(err)
	}
	if !csd.TemporaryWriteProtect() {
		t.Error("TemporaryWriteProtect() = false, want true")
	}
	if csd.PermanentWriteProtect() {
		t.Error("PermanentWriteProtect() = true, want false")
	}
}
