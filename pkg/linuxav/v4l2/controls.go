//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"
	"unsafe"
)

// ControlID identifies one of the camera controls this package exposes.
type ControlID int

// Supported controls.
const (
	ControlBrightness ControlID = iota
	ControlContrast
	ControlSaturation
	ControlHue
	ControlAutoWhiteBalance
	ControlDoWhiteBalance
	ControlRedBalance
	ControlBlueBalance
	ControlGamma
	ControlExposure
	ControlAutogain
	ControlGain
	ControlHFlip
	ControlVFlip
	ControlExposureAuto
	ControlExposureAbsolute
	ControlExposureAutoPriority
	ControlFocusAbsolute
	ControlFocusRelative
	ControlFocusAuto
	ControlZoomAbsolute
	ControlZoomRelative
	ControlWhiteBalanceTemperature
	ControlPowerLineFrequency
	ControlSharpness
	ControlBacklightCompensation
)

const (
	cidBase       = 0x00980900
	cidCameraBase = 0x009a0900
)

var controlTable = []struct {
	cid  uint32
	name string
}{
	ControlBrightness:              {cidBase + 0, "brightness"},
	ControlContrast:                {cidBase + 1, "contrast"},
	ControlSaturation:              {cidBase + 2, "saturation"},
	ControlHue:                     {cidBase + 3, "hue"},
	ControlAutoWhiteBalance:        {cidBase + 12, "auto_white_balance"},
	ControlDoWhiteBalance:          {cidBase + 13, "do_white_balance"},
	ControlRedBalance:              {cidBase + 14, "red_balance"},
	ControlBlueBalance:             {cidBase + 15, "blue_balance"},
	ControlGamma:                   {cidBase + 16, "gamma"},
	ControlExposure:                {cidBase + 17, "exposure"},
	ControlAutogain:                {cidBase + 18, "autogain"},
	ControlGain:                    {cidBase + 19, "gain"},
	ControlHFlip:                   {cidBase + 20, "hflip"},
	ControlVFlip:                   {cidBase + 21, "vflip"},
	ControlExposureAuto:            {cidCameraBase + 1, "exposure_auto"},
	ControlExposureAbsolute:        {cidCameraBase + 2, "exposure_absolute"},
	ControlExposureAutoPriority:    {cidCameraBase + 3, "exposure_auto_priority"},
	ControlFocusAbsolute:           {cidCameraBase + 10, "focus_absolute"},
	ControlFocusRelative:           {cidCameraBase + 11, "focus_relative"},
	ControlFocusAuto:               {cidCameraBase + 12, "focus_auto"},
	ControlZoomAbsolute:            {cidCameraBase + 13, "zoom_absolute"},
	ControlZoomRelative:            {cidCameraBase + 14, "zoom_relative"},
	ControlWhiteBalanceTemperature: {cidBase + 26, "white_balance_temperature"},
	ControlPowerLineFrequency:      {cidBase + 24, "power_line_frequency"},
	ControlSharpness:               {cidBase + 27, "sharpness"},
	ControlBacklightCompensation:   {cidBase + 28, "backlight_compensation"},
}

// AllControls returns every supported control ID in enumeration order.
func AllControls() []ControlID {
	ids := make([]ControlID, len(controlTable))
	for i := range ids {
		ids[i] = ControlID(i)
	}
	return ids
}

func (id ControlID) valid() bool {
	return id >= 0 && int(id) < len(controlTable)
}

// CID returns the V4L2 control ID, or 0 for unknown controls.
func (id ControlID) CID() uint32 {
	if !id.valid() {
		return 0
	}
	return controlTable[id].cid
}

// String returns the snake_case control name used in configuration files.
func (id ControlID) String() string {
	if !id.valid() {
		return "control(" + strconv.Itoa(int(id)) + ")"
	}
	return controlTable[id].name
}

// ParseControl resolves a control name. Dashes, spaces and case are ignored,
// so "White Balance Temperature" and "white-balance-temperature" both match.
func ParseControl(name string) (ControlID, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	for i, c := range controlTable {
		if c.name == key {
			return ControlID(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownControl, name)
}

// ControlType classifies how a control is set.
type ControlType int

// Control types.
const (
	ControlTypeRange ControlType = iota
	ControlTypeBoolean
	ControlTypeMenu
	ControlTypeButton
)

func (t ControlType) String() string {
	switch t {
	case ControlTypeRange:
		return "range"
	case ControlTypeBoolean:
		return "boolean"
	case ControlTypeMenu:
		return "menu"
	case ControlTypeButton:
		return "button"
	default:
		return "unknown"
	}
}

// MenuItem is one entry of a menu control.
type MenuItem struct {
	Name  string
	Value int32
}

// ControlInfo describes a control supported by the open device. Menu is
// owned by the caller.
type ControlInfo struct {
	ID       ControlID
	Type     ControlType
	Name     string
	Min      int32
	Max      int32
	Step     int32
	Default  int32
	ReadOnly bool
	Inactive bool
	Menu     []MenuItem
}

func controlType(typ uint32) (ControlType, bool) {
	switch typ {
	case v4l2CtrlTypeInteger:
		return ControlTypeRange, true
	case v4l2CtrlTypeBoolean:
		return ControlTypeBoolean, true
	case v4l2CtrlTypeMenu, v4l2CtrlTypeIntegerMenu:
		return ControlTypeMenu, true
	case v4l2CtrlTypeButton:
		return ControlTypeButton, true
	default:
		return 0, false
	}
}

// queryControls lists the supported controls the device implements, in
// ControlID order. Disabled controls and unsupported types are skipped.
func queryControls(fd int, path string) ([]ControlInfo, error) {
	var controls []ControlInfo

	for _, id := range AllControls() {
		qc := v4l2Queryctrl{id: id.CID()}
		if err := ioctl(fd, vidiocQueryctrl, unsafe.Pointer(&qc)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				continue // not implemented by this device
			}
			return nil, deviceError("VIDIOC_QUERYCTRL", path, err)
		}
		if qc.flags&v4l2CtrlFlagDisabled != 0 {
			continue
		}
		typ, ok := controlType(qc.typ)
		if !ok {
			continue
		}

		info := ControlInfo{
			ID:       id,
			Type:     typ,
			Name:     cstr(qc.name[:]),
			Min:      qc.minimum,
			Max:      qc.maximum,
			Step:     qc.step,
			Default:  qc.defaultValue,
			ReadOnly: qc.flags&v4l2CtrlFlagReadOnly != 0,
			Inactive: qc.flags&v4l2CtrlFlagInactive != 0,
		}

		if typ == ControlTypeMenu {
			menu, err := queryMenu(fd, path, &qc)
			if err != nil {
				return nil, err
			}
			info.Menu = menu
		}

		controls = append(controls, info)
	}

	return controls, nil
}

func queryMenu(fd int, path string, qc *v4l2Queryctrl) ([]MenuItem, error) {
	var items []MenuItem

	for i := qc.minimum; i <= qc.maximum && i >= 0; i++ {
		qm := v4l2Querymenu{id: qc.id, index: uint32(i)}
		if err := ioctl(fd, vidiocQuerymenu, unsafe.Pointer(&qm)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				continue // sparse menus skip indices
			}
			return nil, deviceError("VIDIOC_QUERYMENU", path, err)
		}

		name := cstr(qm.name[:])
		if qc.typ == v4l2CtrlTypeIntegerMenu {
			name = strconv.FormatInt(qm.value(), 10)
		}
		items = append(items, MenuItem{Name: name, Value: i})

		if i == qc.maximum {
			break
		}
	}

	return items, nil
}

func getControl(fd int, path string, id ControlID) (int32, error) {
	if !id.valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownControl, int(id))
	}
	ctrl := v4l2Control{id: id.CID()}
	if err := ioctl(fd, vidiocGCtrl, unsafe.Pointer(&ctrl)); err != nil {
		return 0, deviceError("VIDIOC_G_CTRL "+id.String(), path, err)
	}
	return ctrl.value, nil
}

func setControl(fd int, path string, id ControlID, value int32) error {
	if !id.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownControl, int(id))
	}
	ctrl := v4l2Control{id: id.CID(), value: value}
	if err := ioctl(fd, vidiocSCtrl, unsafe.Pointer(&ctrl)); err != nil {
		return deviceError("VIDIOC_S_CTRL "+id.String(), path, err)
	}
	return nil
}
