package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/morgen873/kisson/internal/models"
)

// marshalRecordMaps serializes the three answer maps for storage. Empty maps
// are stored as NULL.
func marshalRecordMaps(rec models.SessionRecord) (answers, custom, controls interface{}, err error) {
	if len(rec.Answers) > 0 {
		b, err := json.Marshal(rec.Answers)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal answers: %w", err)
		}
		answers = string(b)
	}
	if len(rec.CustomAnswers) > 0 {
		b, err := json.Marshal(rec.CustomAnswers)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal custom answers: %w", err)
		}
		custom = string(b)
	}
	if len(rec.ControlValues) > 0 {
		b, err := json.Marshal(rec.ControlValues)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal control values: %w", err)
		}
		controls = string(b)
	}
	return answers, custom, controls, nil
}

// marshalRecipeLists serializes the recipe's list fields. Empty lists are
// stored as NULL.
func marshalRecipeLists(r models.RecipeResult) (ingredients, instructions interface{}, err error) {
	if len(r.Ingredients) > 0 {
		b, err := json.Marshal(r.Ingredients)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal ingredients: %w", err)
		}
		ingredients = string(b)
	}
	if len(r.Instructions) > 0 {
		b, err := json.Marshal(r.Instructions)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal instructions: %w", err)
		}
		instructions = string(b)
	}
	return ingredients, instructions, nil
}

// scanSessionRecord scans one session record from a row.
func scanSessionRecord(row *sql.Row) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	var answers, custom, controls sql.NullString
	err := row.Scan(&rec.SessionID, &answers, &custom, &controls, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if answers.Valid && answers.String != "" {
		rec.Answers = make(map[string][]int)
		if err := json.Unmarshal([]byte(answers.String), &rec.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	if custom.Valid && custom.String != "" {
		rec.CustomAnswers = make(map[string]string)
		if err := json.Unmarshal([]byte(custom.String), &rec.CustomAnswers); err != nil {
			return nil, fmt.Errorf("unmarshal custom answers: %w", err)
		}
	}
	if controls.Valid && controls.String != "" {
		rec.ControlValues = make(map[string]models.ControlValues)
		if err := json.Unmarshal([]byte(controls.String), &rec.ControlValues); err != nil {
			return nil, fmt.Errorf("unmarshal control values: %w", err)
		}
	}
	return &rec, nil
}

// scanRecipe scans one recipe from a row.
func scanRecipe(row *sql.Row) (*models.RecipeResult, error) {
	var r models.RecipeResult
	var description, ingredients, instructions, imagePrompt, sessionID sql.NullString
	err := row.Scan(&r.ID, &sessionID, &r.Title, &description, &r.ImageURL, &r.QRData,
		&ingredients, &instructions, &imagePrompt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.SessionID = sessionID.String
	r.Description = description.String
	r.ImagePrompt = imagePrompt.String
	if ingredients.Valid && ingredients.String != "" {
		if err := json.Unmarshal([]byte(ingredients.String), &r.Ingredients); err != nil {
			return nil, fmt.Errorf("unmarshal ingredients: %w", err)
		}
	}
	if instructions.Valid && instructions.String != "" {
		if err := json.Unmarshal([]byte(instructions.String), &r.Instructions); err != nil {
			return nil, fmt.Errorf("unmarshal instructions: %w", err)
		}
	}
	return &r, nil
}

// scanVideoJob scans one video job from a row.
func scanVideoJob(row *sql.Row) (*models.VideoJob, error) {
	var j models.VideoJob
	var url, jobErr sql.NullString
	err := row.Scan(&j.RecipeID, &j.Status, &url, &jobErr, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.URL = url.String
	j.Error = jobErr.String
	return &j, nil
}
