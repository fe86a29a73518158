package filebak

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gwaylib/errors"
)

const (
	SIZE_K = 1024
	SIZE_M = 1024 * SIZE_K
	SIZE_G = 1024 * SIZE_M
)

var ErrBadSize = errors.New("bad size")

// StrToSize parses "512", "1KB", "1.5MB" or "2GB".
func StrToSize(hum string) (int64, error) {
	hum = strings.TrimSpace(hum)
	if len(hum) == 0 {
		return 0, nil
	}
	unit := int64(1)
	num := hum
	if len(hum) > 2 {
		switch strings.ToUpper(hum[len(hum)-2:]) {
		case "KB":
			unit = SIZE_K
		case "MB":
			unit = SIZE_M
		case "GB":
			unit = SIZE_G
		}
		if unit > 1 {
			num = hum[:len(hum)-2]
		}
	}
	if unit == 1 {
		result, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return 0, ErrBadSize.As(hum)
		}
		return result, nil
	}
	result, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, ErrBadSize.As(hum)
	}
	return int64(result * float64(unit)), nil
}

func SizeToStr(size int64) string {
	switch {
	case size < SIZE_K:
		return fmt.Sprintf("%d", size)
	case size < SIZE_M:
		return fmt.Sprintf("%.2fKB", float64(size)/float64(SIZE_K))
	case size < SIZE_G:
		return fmt.Sprintf("%.2fMB", float64(size)/float64(SIZE_M))
	}
	return fmt.Sprintf("%.2fGB", float64(size)/float64(SIZE_G))
}
