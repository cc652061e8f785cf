package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idolpx/esp1541/memory"
)

func TestRAMBankWrapsOnPowerOfTwoBoundary(t *testing.T) {
	bank, err := memory.New8BitRAMBank(256, nil)
	require.NoError(t, err)
	bank.Write(0x100, 0x42) // aliases to 0x00
	require.Equal(t, uint8(0x42), bank.Read(0x00))
}

func TestNew8BitRAMBankRejectsNonPowerOfTwo(t *testing.T) {
	_, err := memory.New8BitRAMBank(300, nil)
	require.Error(t, err)
}

func TestOpenBusReturnsHighAddressByteOutsideMappedRegion(t *testing.T) {
	bank, err := memory.New8BitRAMBank(0x1000, nil)
	require.NoError(t, err)
	bus, err := memory.NewOpenBus(bank, 0x1000, 0x0000)
	require.NoError(t, err)

	require.Equal(t, uint8(0x90), bus.Read(0x9042), "unmapped read should float to the address high byte")
	bus.Write(0x9042, 0x55) // discarded, outside the mapped region
	require.Equal(t, uint8(0x90), bus.Read(0x9042))
}

func TestOpenBusMapsAndLoadsIntoBackingBank(t *testing.T) {
	bank, err := memory.New8BitRAMBank(0x100, nil)
	require.NoError(t, err)
	bus, err := memory.NewOpenBus(bank, 0x100, 0x8000)
	require.NoError(t, err)

	bus.Load(0x8010, []uint8{0xA9, 0x42})
	require.Equal(t, uint8(0xA9), bus.Read(0x8010))
	require.Equal(t, uint8(0x42), bus.Read(0x8011))

	bus.Write(0x8020, 0x7E)
	require.Equal(t, uint8(0x7E), bus.Read(0x8020))
	require.Equal(t, uint8(0x7E), bus.DatabusVal())
}
