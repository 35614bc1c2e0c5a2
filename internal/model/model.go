package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&SessionVehicle{},
	&VehicleSample{},
}

// Session is one recorded simulation run
type Session struct {
	gorm.Model
	Name      string    `json:"name" gorm:"size:128"`
	StartTime time.Time `json:"startTime" gorm:"index:idx_session_start_time"`
	EndTime   time.Time `json:"endTime"`
	TickRate  float64   `json:"tickRate"`
	Samples   uint      `json:"samples"`
}

func (*Session) TableName() string {
	return "sessions"
}

// SessionVehicle is a vehicle that appeared in a session, with its driven
// path summarised when the session ends.
type SessionVehicle struct {
	SessionID  uint      `json:"sessionId" gorm:"primaryKey;autoIncrement:false"`
	VehicleID  string    `json:"vehicleId" gorm:"primaryKey;size:64"`
	Session    Session   `gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Preset     string    `json:"preset" gorm:"size:64"`
	FirstTick  uint64    `json:"firstTick"`
	LastTick   uint64    `json:"lastTick"`
	Distance   float64   `json:"distance"`   // planar length of the driven path (m)
	Trajectory string    `json:"trajectory"` // WKT LineString Z
	CreatedAt  time.Time `json:"createdAt"`
}

func (*SessionVehicle) TableName() string {
	return "session_vehicles"
}

// VehicleSample is one telemetry frame of a vehicle. Per-wheel arrays are
// stored as JSON in FL, FR, RL, RR order.
type VehicleSample struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"index:idx_sample_time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_sample_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	VehicleID string    `json:"vehicleId" gorm:"size:64;index:idx_sample_vehicle_id"`
	Tick      uint64    `json:"tick" gorm:"index:idx_sample_tick"`

	Position  geom.Point `json:"position"` // XY plane position
	Elevation float64    `json:"elevation"`
	Heading   float64    `json:"heading"` // radians, clockwise from +Y
	Speed     float64    `json:"speed"`
	EngineRPM float64    `json:"engineRpm"`
	Gear      int        `json:"gear"`
	Roll      float64    `json:"roll"`
	Pitch     float64    `json:"pitch"`
	Bounce    float64    `json:"bounce"`

	Compression datatypes.JSON `json:"compression"`
	TireLoad    datatypes.JSON `json:"tireLoad"`
	LongForce   datatypes.JSON `json:"longForce"`
	LatForce    datatypes.JSON `json:"latForce"`
	WheelTorque datatypes.JSON `json:"wheelTorque"`
}

func (*VehicleSample) TableName() string {
	return "vehicle_samples"
}
