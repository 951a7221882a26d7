// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"testing"
)

func TestMadgwickStartsAtIdentity(t *testing.T) {
	m := NewMadgwick(DefaultBeta, DefaultSampleFreq)
	if q := m.Quaternion(); q != Identity() {
		t.Fatalf("got=%+v want identity", q)
	}
}

func TestMadgwickNormInvariantUnderIteration(t *testing.T) {
	m := NewMadgwick(DefaultBeta, DefaultSampleFreq)
	accel := Vector{0, 0, 1}
	mag := Vector{0.6, 0.1, 0.8}
	for i := 1; i <= 20000; i++ {
		m.Update(Vector{}, accel, mag)
		if i%1000 == 0 {
			q := m.Quaternion()
			if math.Abs(q.Norm()-1) > 1e-6 {
				t.Fatalf("step %d: norm=%v", i, q.Norm())
			}
			if !m.Pose().Valid() {
				t.Fatalf("step %d: pose %+v", i, m.Pose())
			}
		}
	}
}

func TestMadgwickZeroAccelSkipsCorrection(t *testing.T) {
	m := NewMadgwick(DefaultBeta, DefaultSampleFreq)
	for i := 0; i < 100; i++ {
		m.Update(Vector{}, Vector{}, Vector{0.3, 0, 0.9})
	}
	if q := m.Quaternion(); q != Identity() {
		t.Fatalf("zero gyro + zero accel moved the filter: %+v", q)
	}
}

func TestMadgwickGyroOnlyIntegration(t *testing.T) {
	// 1 rad/s about z for one second, no accel/mag correction possible.
	m := NewMadgwick(DefaultBeta, DefaultSampleFreq)
	for i := 0; i < int(DefaultSampleFreq); i++ {
		m.Update(Vector{0, 0, 1}, Vector{}, Vector{})
	}
	p := m.Pose()
	if math.Abs(math.Abs(p.Yaw)-1/deg) > 0.1 {
		t.Fatalf("|yaw|=%v want≈%v", math.Abs(p.Yaw), 1/deg)
	}
	if math.Abs(p.Roll) > 1e-6 || math.Abs(p.Pitch) > 1e-6 {
		t.Fatalf("roll/pitch drifted: %+v", p)
	}
}

// bodyFrame returns what a sensor with attitude q would measure for a field
// that points along earth in the reference frame.
func bodyFrame(q Quaternion, earth [3]float64) Vector {
	return Vector(q.Conj().Rotate(earth))
}

func TestMadgwickConvergesToStaticAttitude(t *testing.T) {
	target := FromAxisAngle(0, 0, 1, 30*deg).
		Mul(FromAxisAngle(0, 1, 0, 10*deg)).
		Mul(FromAxisAngle(1, 0, 0, 20*deg))
	want := FromQuaternion(target)

	accel := bodyFrame(target, [3]float64{0, 0, 1})
	mag := bodyFrame(target, [3]float64{0.6, 0, 0.8})

	m := NewMadgwick(1, DefaultSampleFreq)
	for i := 0; i < 20000; i++ {
		m.Update(Vector{}, accel, mag)
	}
	got := m.Pose()
	for _, c := range []struct {
		name      string
		got, want float64
	}{
		{"roll", got.Roll, want.Roll},
		{"pitch", got.Pitch, want.Pitch},
		{"yaw", got.Yaw, want.Yaw},
	} {
		if math.Abs(c.got-c.want) > 1 {
			t.Fatalf("%s got=%v want=%v", c.name, c.got, c.want)
		}
	}
}

func TestMadgwickZeroMagFallsBackToIMU(t *testing.T) {
	target := FromAxisAngle(1, 0, 0, 25*deg)
	accel := bodyFrame(target, [3]float64{0, 0, 1})

	a := NewMadgwick(0.5, DefaultSampleFreq)
	b := NewMadgwick(0.5, DefaultSampleFreq)
	for i := 0; i < 5000; i++ {
		a.Update(Vector{}, accel, Vector{})
		b.UpdateIMU(Vector{}, accel)
	}
	if a.Quaternion() != b.Quaternion() {
		t.Fatalf("Update with zero mag=%+v UpdateIMU=%+v", a.Quaternion(), b.Quaternion())
	}
	if p := a.Pose(); !p.Valid() || math.Abs(math.Abs(p.Roll)-25) > 1 {
		t.Fatalf("pose=%+v want |roll|≈25", p)
	}
}

func TestMadgwickUpdateDt(t *testing.T) {
	nominal := NewMadgwick(DefaultBeta, DefaultSampleFreq)
	fallback := NewMadgwick(DefaultBeta, DefaultSampleFreq)
	longer := NewMadgwick(DefaultBeta, DefaultSampleFreq)
	g := Vector{0, 0, 0.5}
	for i := 0; i < 100; i++ {
		nominal.Update(g, Vector{}, Vector{})
		fallback.UpdateDt(g, Vector{}, Vector{}, 0)
		longer.UpdateDt(g, Vector{}, Vector{}, 4/DefaultSampleFreq)
	}
	if nominal.Quaternion() != fallback.Quaternion() {
		t.Fatalf("dt=0 should use the nominal period")
	}
	if math.Abs(longer.Pose().Yaw) <= math.Abs(nominal.Pose().Yaw) {
		t.Fatalf("longer dt should integrate further: %v vs %v", longer.Pose().Yaw, nominal.Pose().Yaw)
	}
}

func TestMadgwickReset(t *testing.T) {
	m := NewMadgwick(DefaultBeta, DefaultSampleFreq)
	for i := 0; i < 50; i++ {
		m.Update(Vector{0.2, 0.1, 0.3}, Vector{0, 0.2, 1}, Vector{0.5, 0, 0.5})
	}
	if m.Quaternion() == Identity() {
		t.Fatalf("filter did not move")
	}
	m.Reset()
	if m.Quaternion() != Identity() {
		t.Fatalf("Reset left %+v", m.Quaternion())
	}
}

func TestNewMadgwickDefaults(t *testing.T) {
	m := NewMadgwick(-1, 0)
	if m.Beta() != DefaultBeta || m.SampleFreq() != DefaultSampleFreq {
		t.Fatalf("beta=%v freq=%v", m.Beta(), m.SampleFreq())
	}
}
