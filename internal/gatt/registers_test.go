package gatt

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RegistersTestSuite struct {
	suite.Suite
}

func (suite *RegistersTestSuite) TestNormalizeUUID() {
	// GOAL: Verify UUID normalization handles case, dashes, 0x prefixes, and
	// SIG base UUID reduction
	//
	// TEST SCENARIO: Normalize each spelling → canonical lookup form

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"short form passes through", "e101", "e101"},
		{"uppercase is lowered", "E101", "e101"},
		{"0x prefix is stripped", "0xE101", "e101"},
		{"sig base uuid reduces to short form", "0000e101-0000-1000-8000-00805f9b34fb", "e101"},
		{"sig base uuid without dashes reduces too", "0000e10100001000800000805f9b34fb", "e101"},
		{"vendor uuid keeps full form", "2A001800-2803-2801-2800-1D9FF2D5C442", "2a0018002803280128001d9ff2d5c442"},
		{"non-sig full uuid is not reduced", "1000e101-0000-1000-8000-00805f9b34fb", "1000e10100001000800000805f9b34fb"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.Equal(tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func (suite *RegistersTestSuite) TestKnownRegistersBankOrder() {
	// GOAL: Verify the register table iterates servo bank first, status bank
	// second

	regs := KnownRegisters()
	suite.Require().Len(regs, 10, "register table MUST hold all 10 registers")

	seenStatus := false
	for _, reg := range regs {
		info, ok := Lookup(reg)
		suite.Require().True(ok, "every listed register MUST be known")
		if info.Bank == StatusBank {
			seenStatus = true
		} else {
			suite.False(seenStatus, "servo bank registers MUST precede status bank registers")
		}
	}
}

func (suite *RegistersTestSuite) TestRegisterSetResolution() {
	// GOAL: Verify RegisterSet tracks resolution and completeness
	//
	// TEST SCENARIO: Build sets from full, partial, and noisy UUID lists

	suite.Run("complete set", func() {
		var uuids []string
		for _, reg := range KnownRegisters() {
			uuids = append(uuids, string(reg))
		}
		set := NewRegisterSet(uuids)
		suite.True(set.Complete(), "a set with every register MUST be complete")
		suite.Equal(10, set.Len())
	})

	suite.Run("partial set is incomplete", func() {
		set := NewRegisterSet([]string{"9145", "9146", "e101"})
		suite.False(set.Complete(), "a partial set MUST NOT be complete")
		suite.True(set.Has(RegServoHorizontal))
		suite.False(set.Has(RegButton))
	})

	suite.Run("unknown uuids are ignored", func() {
		set := NewRegisterSet([]string{"dead", "beef", "e101"})
		suite.Equal(1, set.Len(), "unknown UUIDs MUST NOT count toward resolution")
	})

	suite.Run("full-form sig uuids resolve", func() {
		set := NewRegisterSet([]string{"0000e101-0000-1000-8000-00805f9b34fb"})
		suite.True(set.Has(RegBattery), "SIG base spellings MUST resolve to their register")
	})

	suite.Run("nil set", func() {
		var set *RegisterSet
		suite.False(set.Complete())
		suite.False(set.Has(RegBattery))
		suite.Equal(0, set.Len())
		suite.Nil(set.Registers())
	})
}

func TestRegistersTestSuite(t *testing.T) {
	suite.Run(t, new(RegistersTestSuite))
}
