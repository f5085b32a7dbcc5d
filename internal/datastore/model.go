package datastore

// DetectionTimeLayout is the stored format of Plate.DetectionTime, local time.
const DetectionTimeLayout = "2006-01-02 15:04:05"

// Plate is one recognised license plate. At most one row exists per Frigate event.
type Plate struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	DetectionTime string   `gorm:"size:32;not null" json:"detection_time"`
	Score         *float64 `json:"score"`
	PlateNumber   string   `gorm:"size:64;index;not null" json:"plate_number"`
	FrigateEvent  string   `gorm:"size:255;uniqueIndex;not null" json:"frigate_event"`
	CameraName    string   `gorm:"size:255" json:"camera_name"`
}

// TableName keeps the table name stable across GORM naming strategies.
func (Plate) TableName() string {
	return "plates"
}
