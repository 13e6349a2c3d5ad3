package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Normalized-mode entities. An Instruction exclusively owns its Components,
// a Component its Modifiers; both are removed with their parent. Materials
// and Styles live independently and are shared by reference.

type Instruction struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"size:255;index"`
	InputPrompt     string    `json:"input_prompt" gorm:"type:text;not null"`
	ModelName       string    `json:"model_name" gorm:"size:100"`
	ModelParamsHash string    `json:"model_params_hash" gorm:"size:64;index"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`

	Components []Component `json:"components,omitempty" gorm:"foreignKey:InstructionID"`
	Styles     []Style     `json:"styles,omitempty" gorm:"many2many:instruction_styles"`
}

type Component struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	InstructionID uint   `json:"instruction_id" gorm:"index;not null"`
	Name          string `json:"name" gorm:"size:255"`
	Type          string `json:"type" gorm:"size:50;not null"`

	PosX float64 `json:"pos_x" gorm:"default:0"`
	PosY float64 `json:"pos_y" gorm:"default:0"`
	PosZ float64 `json:"pos_z" gorm:"default:0"`

	// Scale columns carry no column default: the repository fills
	// unsupplied triples before the write, and an explicit zero must
	// survive the insert.
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`
	ScaleZ float64 `json:"scale_z"`

	RotX float64 `json:"rot_x" gorm:"default:0"`
	RotY float64 `json:"rot_y" gorm:"default:0"`
	RotZ float64 `json:"rot_z" gorm:"default:0"`

	MaterialID *uint `json:"material_id" gorm:"index"`

	Modifiers []Modifier `json:"modifiers,omitempty" gorm:"foreignKey:ComponentID"`
}

// Modifier parameter shapes legitimately vary by type, so Params stays a
// free-form JSON payload even in the normalized schema.
type Modifier struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	ComponentID uint           `json:"component_id" gorm:"index;not null"`
	Type        string         `json:"type" gorm:"size:100;not null"`
	Params      datatypes.JSON `json:"params"`
}

type Material struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"size:255;uniqueIndex;not null"`
	Category string `json:"category" gorm:"size:100"`
}

type Style struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:255;uniqueIndex;not null"`
}

// InstructionStyle is the many-to-many join between Instruction and Style.
type InstructionStyle struct {
	InstructionID uint `json:"instruction_id" gorm:"primaryKey"`
	StyleID       uint `json:"style_id" gorm:"primaryKey"`
}

// ModelParamsFingerprint derives the reproducibility-grouping hash of an
// instruction's generation parameters.
func ModelParamsFingerprint(modelName string, temperature float64, maxTokens int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%g|%d", modelName, temperature, maxTokens)))
	return hex.EncodeToString(sum[:])
}
