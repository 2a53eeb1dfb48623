package gestic

import (
	"context"
	"fmt"
)

// ParameterID selects a runtime parameter.
type ParameterID uint16

// From the MGC3X30 message reference, Set_Runtime_Parameter IDs.
const (
	ParamTrigger        ParameterID = 0x1000
	ParamMakePersistent ParameterID = 0xFF00

	ParamAFERxAttS ParameterID = 0x0050
	ParamAFERxAttW ParameterID = 0x0051
	ParamAFERxAttN ParameterID = 0x0052
	ParamAFERxAttE ParameterID = 0x0053
	ParamAFERxAttC ParameterID = 0x0054

	ParamChannelMappingS ParameterID = 0x0065
	ParamChannelMappingW ParameterID = 0x0066
	ParamChannelMappingN ParameterID = 0x0067
	ParamChannelMappingE ParameterID = 0x0068
	ParamChannelMappingC ParameterID = 0x0069

	ParamDSPCalOpMode              ParameterID = 0x0080
	ParamTransFreqSelect           ParameterID = 0x0082
	ParamDSPGestureMask            ParameterID = 0x0085
	ParamDSPAirWheelConfig         ParameterID = 0x0090
	ParamDSPTouchConfig            ParameterID = 0x0097
	ParamDSPApproachDetectionMode  ParameterID = 0x0097
	ParamDataOutputEnableMask      ParameterID = 0x00A0
	ParamDataOutputLockMask        ParameterID = 0x00A1
	ParamDataOutputRequestMask     ParameterID = 0x00A2
	ParamDataOutputGestureProgress ParameterID = 0x00A3
)

// Trigger is the argument of the trigger parameter.
type Trigger uint32

const (
	TriggerCalibration Trigger = 0
	TriggerDeepSleep1  Trigger = 1
	TriggerDeepSleep2  Trigger = 2
)

// PersistentCategory selects which parameter group MakePersistent stores.
type PersistentCategory uint32

const (
	PersistentAFE    PersistentCategory = 0
	PersistentDSP    PersistentCategory = 1
	PersistentSystem PersistentCategory = 2
)

const (
	calibrationMask   = 0x3F
	approachMask      = 0x01
	touchDetectMask   = 0x08
	airWheelMask      = 0x20
	gestureEnableMask = 0x7F
)

// SetParam writes a runtime parameter and waits for the acknowledgement.
func (d *Device) SetParam(ctx context.Context, id ParameterID, arg0, arg1 uint32) error {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	return d.send(ctx, SetRuntimeParameterMessage(RuntimeParameter{ID: id, Arg0: arg0, Arg1: arg1}), d.cfg.Timeout)
}

// GetParam reads a runtime parameter. ErrMissingMessage is returned if the
// device acknowledged the request without sending the parameter.
func (d *Device) GetParam(ctx context.Context, id ParameterID) (arg0, arg1 uint32, err error) {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	req := &pendingParam{value: RuntimeParameter{ID: id}}
	d.mu.Lock()
	d.param = req
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.param = nil
		d.mu.Unlock()
	}()

	if err := d.send(ctx, RequestMessage(MsgSetRuntimeParameter, uint32(id)), d.cfg.Timeout); err != nil {
		return 0, 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !req.received {
		return 0, 0, fmt.Errorf("%w: parameter 0x%04X", ErrMissingMessage, uint16(id))
	}
	return req.value.Arg0, req.value.Arg1, nil
}

func (d *Device) TriggerAction(ctx context.Context, t Trigger) error {
	return d.SetParam(ctx, ParamTrigger, uint32(t), 0)
}

func (d *Device) ForceCalibration(ctx context.Context) error {
	return d.TriggerAction(ctx, TriggerCalibration)
}

// EnterDeepSleep puts the sensor into deep sleep 1 (wake on I2C) or 2 (wake on reset).
func (d *Device) EnterDeepSleep(ctx context.Context, t Trigger) error {
	if t != TriggerDeepSleep1 && t != TriggerDeepSleep2 {
		return fmt.Errorf("%w: trigger %d is not a deep sleep mode", ErrBadParam, t)
	}
	return d.TriggerAction(ctx, t)
}

// MakePersistent stores the current parameters of a category in flash.
func (d *Device) MakePersistent(ctx context.Context, category PersistentCategory) error {
	return d.SetParam(ctx, ParamMakePersistent, uint32(category), 0)
}

// SetAutoCalibration clears every calibration inhibit bit to enable
// automatic calibration, or sets them all to disable it.
func (d *Device) SetAutoCalibration(ctx context.Context, enabled bool) error {
	var arg0 uint32
	if !enabled {
		arg0 = calibrationMask
	}
	return d.SetParam(ctx, ParamDSPCalOpMode, arg0, calibrationMask)
}

// AutoCalibration reports whether no automatic calibration is inhibited.
func (d *Device) AutoCalibration(ctx context.Context) (bool, error) {
	v, _, err := d.GetParam(ctx, ParamDSPCalOpMode)
	if err != nil {
		return false, err
	}
	return v&calibrationMask == 0, nil
}

// SelectFrequencies restricts the transmit frequencies the sensor may hop between.
func (d *Device) SelectFrequencies(ctx context.Context, freqs Frequencies) error {
	count, list, err := frequencyList(freqs)
	if err != nil {
		return err
	}
	return d.SetParam(ctx, ParamTransFreqSelect, count, list)
}

// frequencyList packs the selected frequency indices as nibbles, the
// highest selected index in the lowest nibble. Unused nibbles stay 0xF.
func frequencyList(freqs Frequencies) (count, list uint32, err error) {
	list = 0xFFFFF
	for i := 0; i < 5; i++ {
		if freqs&(1<<i) != 0 {
			list = list<<4 | uint32(i)
			count++
		}
	}
	list &= 0xFFFFF

	if count == 0 {
		return 0, 0, fmt.Errorf("%w: no frequency selected", ErrBadParam)
	}
	return count, list, nil
}

func (d *Device) SetApproachDetection(ctx context.Context, enabled bool) error {
	return d.SetParam(ctx, ParamDSPApproachDetectionMode, flag(enabled, approachMask), approachMask)
}

func (d *Device) ApproachDetection(ctx context.Context) (bool, error) {
	v, _, err := d.GetParam(ctx, ParamDSPApproachDetectionMode)
	return v&approachMask != 0, err
}

// SetEnabledGestures enables the gestures whose bit (1 << Gesture) is set.
func (d *Device) SetEnabledGestures(ctx context.Context, gestures uint32) error {
	return d.SetParam(ctx, ParamDSPGestureMask, gestures&gestureEnableMask, gestureEnableMask)
}

func (d *Device) EnabledGestures(ctx context.Context) (uint32, error) {
	v, _, err := d.GetParam(ctx, ParamDSPGestureMask)
	return v & gestureEnableMask, err
}

func (d *Device) SetTouchDetection(ctx context.Context, enabled bool) error {
	return d.SetParam(ctx, ParamDSPTouchConfig, flag(enabled, touchDetectMask), touchDetectMask)
}

func (d *Device) TouchDetection(ctx context.Context) (bool, error) {
	v, _, err := d.GetParam(ctx, ParamDSPTouchConfig)
	return v&touchDetectMask != 0, err
}

func (d *Device) SetAirWheelEnabled(ctx context.Context, enabled bool) error {
	return d.SetParam(ctx, ParamDSPAirWheelConfig, flag(enabled, airWheelMask), airWheelMask)
}

func (d *Device) AirWheelEnabled(ctx context.Context) (bool, error) {
	v, _, err := d.GetParam(ctx, ParamDSPAirWheelConfig)
	return v&airWheelMask != 0, err
}

// SetOutputEnableMask selects which blocks Sensor_Data_Output carries.
// flags holds the new state of the outputs selected by mask. Outputs set in
// lock are sent in every frame even when their values did not change.
func (d *Device) SetOutputEnableMask(ctx context.Context, flags, lock, mask OutputMask) error {
	if err := d.SetParam(ctx, ParamDataOutputLockMask, uint32(flags), uint32(lock)); err != nil {
		return err
	}
	return d.SetParam(ctx, ParamDataOutputEnableMask, uint32(flags), uint32(mask))
}

// OutputEnableMask reads back the enabled and locked outputs.
func (d *Device) OutputEnableMask(ctx context.Context) (flags, locked OutputMask, err error) {
	v, _, err := d.GetParam(ctx, ParamDataOutputEnableMask)
	if err != nil {
		return 0, 0, err
	}
	l, _, err := d.GetParam(ctx, ParamDataOutputLockMask)
	if err != nil {
		return 0, 0, err
	}
	return OutputMask(v) & OutputAll, OutputMask(l) & OutputAll, nil
}

func flag(enabled bool, bit uint32) uint32 {
	if enabled {
		return bit
	}
	return 0
}
