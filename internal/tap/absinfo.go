package tap

import (
	"unsafe"

	"golang.org/x/sys/unix"

	evdev "github.com/gvalkov/golang-evdev"
)

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocRead = 2
)

func evioCGAbs(absCode int) uintptr {
	// EVIOCGABS(abs) = _IOR('E', 0x40 + abs, struct input_absinfo)
	return uintptr(iocRead<<iocDirShift |
		int(unsafe.Sizeof(absInfo{}))<<iocSizeShift |
		'E'<<iocTypeShift |
		(0x40+absCode)<<iocNRShift)
}

func getAbsInfo(fd uintptr, absCode int) (absInfo, error) {
	var info absInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, evioCGAbs(absCode), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return absInfo{}, errno
	}
	return info, nil
}

// absRanges reads the x/y axis ranges of an absolute pointer device.
func absRanges(fd uintptr) (minX, maxX, minY, maxY int32) {
	if x, err := getAbsInfo(fd, evdev.ABS_X); err == nil {
		minX, maxX = x.Min, x.Max
	}
	if y, err := getAbsInfo(fd, evdev.ABS_Y); err == nil {
		minY, maxY = y.Min, y.Max
	}
	return minX, maxX, minY, maxY
}
