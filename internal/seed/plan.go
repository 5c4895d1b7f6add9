// Package seed fills a database with generated demo data.
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan sizes a seeding run. It is read from a YAML file.
type Plan struct {
	Users           int    `yaml:"users"`
	PostsPerUser    int    `yaml:"posts_per_user"`
	RepliesPerPost  int    `yaml:"replies_per_post"`
	VotesPerPost    int    `yaml:"votes_per_post"`
	CommentsPerPost int    `yaml:"comments_per_post"`
	FollowsPerUser  int    `yaml:"follows_per_user"`
	MaxDays         int    `yaml:"max_days"`
	Password        string `yaml:"password"`
	Clean           bool   `yaml:"clean"`
}

// DefaultPlan is used when no plan file is given and fills unset keys of one that is.
func DefaultPlan() Plan {
	return Plan{
		Users:           20,
		PostsPerUser:    3,
		RepliesPerPost:  2,
		VotesPerPost:    5,
		CommentsPerPost: 2,
		FollowsPerUser:  3,
		MaxDays:         30,
		Password:        "agora-demo-password",
	}
}

// LoadPlan reads the plan at path. An empty path yields DefaultPlan.
func LoadPlan(path string) (Plan, error) {
	if path == "" {
		return DefaultPlan(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read seed plan: %w", err)
	}
	return ParsePlan(raw)
}

// ParsePlan decodes a YAML plan, rejecting unknown keys.
func ParsePlan(raw []byte) (Plan, error) {
	plan := DefaultPlan()

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil && !errors.Is(err, io.EOF) {
		return Plan{}, fmt.Errorf("parse seed plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (p Plan) Validate() error {
	switch {
	case p.Users < 1:
		return errors.New("users must be at least 1")
	case p.PostsPerUser < 0, p.RepliesPerPost < 0, p.VotesPerPost < 0, p.CommentsPerPost < 0, p.FollowsPerUser < 0:
		return errors.New("per-item counts cannot be negative")
	case p.MaxDays < 1:
		return errors.New("max_days must be at least 1")
	case p.Password == "":
		return errors.New("password is required")
	}
	return nil
}
