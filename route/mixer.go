package route

import (
	"bytes"
	"fmt"
	"os"
	"unsafe"

	"github.com/gen2brain/audiohw/internal/ioctl"
)

// Control element types (SNDRV_CTL_ELEM_TYPE_*).
const (
	ctlTypeBoolean    = 1
	ctlTypeInteger    = 2
	ctlTypeEnumerated = 3
)

// Mixer gives the routing table write access to the control elements of
// one sound card. Only the boolean, integer and enumerated element
// types needed for routing are supported.
type Mixer struct {
	file *os.File
	ctls map[string]*mixerCtl
}

type mixerCtl struct {
	id    sndCtlElemId
	typ   int32
	count uint32
	items uint32 // enumerated types only
}

// OpenMixer opens /dev/snd/controlC<card> and enumerates its control
// elements.
func OpenMixer(card uint) (*Mixer, error) {
	path := fmt.Sprintf("/dev/snd/controlC%d", card)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("route: open mixer %s: %w", path, err)
	}

	m := &Mixer{
		file: file,
		ctls: make(map[string]*mixerCtl),
	}

	if err := m.enumerate(); err != nil {
		_ = m.Close()

		return nil, err
	}

	return m, nil
}

// Close closes the control device handle.
func (m *Mixer) Close() error {
	if m == nil || m.file == nil {
		return nil
	}

	err := m.file.Close()
	m.file = nil

	return err
}

// NumCtls returns the number of enumerated control elements.
func (m *Mixer) NumCtls() int {
	return len(m.ctls)
}

// HasCtl reports whether a control with the given name exists.
func (m *Mixer) HasCtl(name string) bool {
	_, ok := m.ctls[name]

	return ok
}

func (m *Mixer) enumerate() error {
	list := &sndCtlElemList{}
	if err := ioctl.Do(m.file.Fd(), ioctlElemList, uintptr(unsafe.Pointer(list))); err != nil {
		return fmt.Errorf("route: ioctl ELEM_LIST (count): %w", err)
	}

	if list.Count == 0 {
		return nil
	}

	ids := make([]sndCtlElemId, list.Count)
	list.Space = list.Count
	list.Offset = 0
	list.Pids = uintptr(unsafe.Pointer(&ids[0]))

	if err := ioctl.Do(m.file.Fd(), ioctlElemList, uintptr(unsafe.Pointer(list))); err != nil {
		return fmt.Errorf("route: ioctl ELEM_LIST (ids): %w", err)
	}

	for i := uint32(0); i < list.Used; i++ {
		info := sndCtlElemInfo{}
		info.Id = ids[i]

		if err := ioctl.Do(m.file.Fd(), ioctlElemInfo, uintptr(unsafe.Pointer(&info))); err != nil {
			continue
		}

		ctl := &mixerCtl{
			id:    info.Id,
			typ:   info.Typ,
			count: info.Count,
		}

		if info.Typ == ctlTypeEnumerated {
			ctl.items = (*sndCtlEnum)(unsafe.Pointer(&info.Value[0])).Items
		}

		m.ctls[cString(ctl.id.Name[:])] = ctl
	}

	return nil
}

func (m *Mixer) ctl(name string) (*mixerCtl, error) {
	ctl, ok := m.ctls[name]
	if !ok {
		return nil, fmt.Errorf("route: control not found: %s", name)
	}

	return ctl, nil
}

// SetInt writes an integer or boolean value to every channel of the
// named control.
func (m *Mixer) SetInt(name string, value int) error {
	ctl, err := m.ctl(name)
	if err != nil {
		return err
	}

	if ctl.typ != ctlTypeInteger && ctl.typ != ctlTypeBoolean {
		return fmt.Errorf("route: control %s is not integer-valued", name)
	}

	ev := sndCtlElemValue{Id: ctl.id}
	longs := (*[128]clong)(unsafe.Pointer(&ev.Value[0]))
	for i := uint32(0); i < ctl.count && i < 128; i++ {
		longs[i] = clong(value)
	}

	if err := ioctl.Do(m.file.Fd(), ioctlElemWrite, uintptr(unsafe.Pointer(&ev))); err != nil {
		return fmt.Errorf("route: ioctl ELEM_WRITE %s: %w", name, err)
	}

	return nil
}

// Int reads the first channel of an integer or boolean control.
func (m *Mixer) Int(name string) (int, error) {
	ctl, err := m.ctl(name)
	if err != nil {
		return 0, err
	}

	if ctl.typ != ctlTypeInteger && ctl.typ != ctlTypeBoolean {
		return 0, fmt.Errorf("route: control %s is not integer-valued", name)
	}

	ev := sndCtlElemValue{Id: ctl.id}
	if err := ioctl.Do(m.file.Fd(), ioctlElemRead, uintptr(unsafe.Pointer(&ev))); err != nil {
		return 0, fmt.Errorf("route: ioctl ELEM_READ %s: %w", name, err)
	}

	return int(*(*clong)(unsafe.Pointer(&ev.Value[0]))), nil
}

// SetEnum writes the named item to every channel of an enumerated
// control.
func (m *Mixer) SetEnum(name string, item string) error {
	ctl, err := m.ctl(name)
	if err != nil {
		return err
	}

	if ctl.typ != ctlTypeEnumerated {
		return fmt.Errorf("route: control %s is not enumerated", name)
	}

	index, err := m.enumIndex(ctl, item)
	if err != nil {
		return err
	}

	ev := sndCtlElemValue{Id: ctl.id}
	items := (*[128]uint32)(unsafe.Pointer(&ev.Value[0]))
	for i := uint32(0); i < ctl.count && i < 128; i++ {
		items[i] = index
	}

	if err := ioctl.Do(m.file.Fd(), ioctlElemWrite, uintptr(unsafe.Pointer(&ev))); err != nil {
		return fmt.Errorf("route: ioctl ELEM_WRITE %s: %w", name, err)
	}

	return nil
}

// Enum reads the currently selected item name of an enumerated control.
func (m *Mixer) Enum(name string) (string, error) {
	ctl, err := m.ctl(name)
	if err != nil {
		return "", err
	}

	if ctl.typ != ctlTypeEnumerated {
		return "", fmt.Errorf("route: control %s is not enumerated", name)
	}

	ev := sndCtlElemValue{Id: ctl.id}
	if err := ioctl.Do(m.file.Fd(), ioctlElemRead, uintptr(unsafe.Pointer(&ev))); err != nil {
		return "", fmt.Errorf("route: ioctl ELEM_READ %s: %w", name, err)
	}

	index := *(*uint32)(unsafe.Pointer(&ev.Value[0]))

	return m.enumItemName(ctl, index)
}

// enumIndex resolves an enumerated item name to its index by walking
// the item list through ELEM_INFO.
func (m *Mixer) enumIndex(ctl *mixerCtl, item string) (uint32, error) {
	for i := uint32(0); i < ctl.items; i++ {
		name, err := m.enumItemName(ctl, i)
		if err != nil {
			return 0, err
		}

		if name == item {
			return i, nil
		}
	}

	return 0, fmt.Errorf("route: control %s has no item %q", cString(ctl.id.Name[:]), item)
}

func (m *Mixer) enumItemName(ctl *mixerCtl, index uint32) (string, error) {
	info := sndCtlElemInfo{Id: ctl.id}
	en := (*sndCtlEnum)(unsafe.Pointer(&info.Value[0]))
	en.Item = index

	if err := ioctl.Do(m.file.Fd(), ioctlElemInfo, uintptr(unsafe.Pointer(&info))); err != nil {
		return "", fmt.Errorf("route: ioctl ELEM_INFO: %w", err)
	}

	return cString(en.Name[:]), nil
}

// cString converts a NUL-terminated byte array to a Go string.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}

	return string(b)
}
