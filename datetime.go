// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"fmt"
	"time"
)

const dosEpochYear = 1980

// DosDateTime is an MS-DOS timestamp as stored in ZIP headers.
// Seconds have a 2-second resolution and years range from 1980 to 2107.
type DosDateTime struct {
	Day    uint8
	Month  uint8
	Year   uint16
	Hour   uint8
	Minute uint8
	Second uint8
}

// NewDosDateTime returns a timestamp with seconds rounded down to an even value.
func NewDosDateTime(day, month uint8, year uint16, hour, minute, second uint8) DosDateTime {
	return DosDateTime{
		Day:    day,
		Month:  month,
		Year:   year,
		Hour:   hour,
		Minute: minute,
		Second: second &^ 1,
	}
}

// DosDateTimeFromTime converts t, clamping the year to the representable range.
func DosDateTimeFromTime(t time.Time) DosDateTime {
	year := min(max(t.Year(), dosEpochYear), dosEpochYear+127)
	if year != t.Year() {
		if year == dosEpochYear {
			return NewDosDateTime(1, 1, dosEpochYear, 0, 0, 0)
		}
		return NewDosDateTime(31, 12, uint16(year), 23, 59, 58)
	}
	return NewDosDateTime(uint8(t.Day()), uint8(t.Month()), uint16(year),
		uint8(t.Hour()), uint8(t.Minute()), uint8(t.Second()))
}

// UnpackDosDateTime decodes the packed date and time words.
func UnpackDosDateTime(dosDate, dosTime uint16) DosDateTime {
	return DosDateTime{
		Day:    uint8(dosDate & 0x1F),
		Month:  uint8((dosDate >> 5) & 0x0F),
		Year:   (dosDate>>9)&0x7F + dosEpochYear,
		Hour:   uint8((dosTime >> 11) & 0x1F),
		Minute: uint8((dosTime >> 5) & 0x3F),
		Second: uint8(dosTime&0x1F) * 2,
	}
}

// Pack encodes the timestamp into the date and time words.
func (d DosDateTime) Pack() (dosDate uint16, dosTime uint16) {
	year := min(max(d.Year, dosEpochYear), dosEpochYear+127) - dosEpochYear

	dosDate = year<<9 | uint16(d.Month&0x0F)<<5 | uint16(d.Day&0x1F)
	dosTime = uint16(d.Hour&0x1F)<<11 | uint16(d.Minute&0x3F)<<5 | uint16(d.Second/2)
	return dosDate, dosTime
}

// Time returns the timestamp in the local time zone.
// Out-of-range day and month values, as found in zeroed headers, map to 1.
func (d DosDateTime) Time() time.Time {
	month, day := d.Month, d.Day
	if month < 1 || month > 12 {
		month = 1
	}
	if day < 1 || day > 31 {
		day = 1
	}
	return time.Date(int(d.Year), time.Month(month), int(day),
		int(d.Hour), int(d.Minute), int(d.Second), 0, time.Local)
}

func (d DosDateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
}
