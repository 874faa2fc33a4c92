// Package mongo is the production Job Store backend (C3): one MongoDB
// collection, one document per job, with real positional subdocument
// updates expressed via $set + arrayFilters rather than whole-document
// rewrites — this is the one backend that can literally exercise the
// "positional subdocument match" language the contract uses.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/store"
)

const defaultCollection = "jobs"

// Store is a mongo-driver-backed store.Store implementation.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to uri and returns a Store backed by database/collection.
// Pass collection == "" to use the default "jobs" collection.
func New(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if collection == "" {
		collection = defaultCollection
	}
	coll := client.Database(database).Collection(collection)

	// job_id carries the document identity in every query below; a
	// unique index turns a duplicate Create into a driver-level error
	// instead of a silent overwrite.
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "job_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure job_id index: %w", err)
	}

	return &Store{client: client, collection: coll}, nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) Create(ctx context.Context, job *models.Job) error {
	doc, err := toDoc(job)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", models.ErrDuplicateJob, job.JobID)
		}
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var doc jobDoc
	err := s.collection.FindOne(ctx, bson.D{{Key: "job_id", Value: jobID}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: job %s", models.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return fromDoc(&doc), nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status models.Status) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.D{{Key: "job_id", Value: jobID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: status},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: job %s", models.ErrNotFound, jobID)
	}
	return nil
}

// UpdateStep targets the matching step via a positional array filter —
// the literal Mongo expression of "positional subdocument update."
func (s *Store) UpdateStep(ctx context.Context, jobID, stepID string, update store.StepUpdate) error {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if update.Status != nil {
		set = append(set, bson.E{Key: "steps.$[elem].status", Value: *update.Status})
	}
	if update.Outputs != nil {
		set = append(set, bson.E{Key: "steps.$[elem].outputs", Value: update.Outputs})
	}
	if update.StartedAt != nil {
		set = append(set, bson.E{Key: "steps.$[elem].started_at", Value: *update.StartedAt})
	}
	if update.FinishedAt != nil {
		set = append(set, bson.E{Key: "steps.$[elem].finished_at", Value: *update.FinishedAt})
	}
	if update.LogTail != nil {
		set = append(set, bson.E{Key: "steps.$[elem].log_tail", Value: update.LogTail})
	}

	unset := bson.D{}
	if update.ClearError {
		unset = append(unset, bson.E{Key: "steps.$[elem].error_message", Value: ""})
	} else if update.ErrorMessage != nil {
		set = append(set, bson.E{Key: "steps.$[elem].error_message", Value: *update.ErrorMessage})
	}

	updateDoc := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		updateDoc = append(updateDoc, bson.E{Key: "$unset", Value: unset})
	}

	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.D{{Key: "elem.step_id", Value: stepID}}},
	})
	res, err := s.collection.UpdateOne(ctx, bson.D{{Key: "job_id", Value: jobID}}, updateDoc, opts)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: job %s", models.ErrNotFound, jobID)
	}
	return nil
}

func (s *Store) GetStepOutputs(ctx context.Context, jobID, stepID string) (map[string]string, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.GetStepOutputs(stepID), nil
}

// jobDoc/stepDoc/transitionDoc/commandSpecDoc are the BSON-facing
// mirrors of the models package's wire types. CommandSpec.Flags is
// stored as a bson.D (order-preserving) rather than a map, for the same
// reason the JSON encoding hand-rolls ordering in models.CommandSpec.
type jobDoc struct {
	JobID           string            `bson:"job_id"`
	UserID          string            `bson:"user_id,omitempty"`
	Status          models.Status     `bson:"status"`
	Steps           []stepDoc         `bson:"steps"`
	StepTransitions []transitionDoc   `bson:"step_transitions"`
	CreatedAt       time.Time         `bson:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at"`
}

type stepDoc struct {
	StepID       string            `bson:"step_id"`
	Name         string            `bson:"name"`
	Order        int               `bson:"order"`
	Service      string            `bson:"service"`
	CommandSpec  commandSpecDoc    `bson:"command_spec"`
	Inputs       map[string]string `bson:"inputs,omitempty"`
	Outputs      map[string]string `bson:"outputs,omitempty"`
	Status       models.Status     `bson:"status"`
	StartedAt    *time.Time        `bson:"started_at,omitempty"`
	FinishedAt   *time.Time        `bson:"finished_at,omitempty"`
	ErrorMessage string            `bson:"error_message,omitempty"`
	LogTail      []string          `bson:"log_tail,omitempty"`
}

type commandSpecDoc struct {
	Program string            `bson:"program"`
	Flags   bson.D            `bson:"flags"`
	Args    []string          `bson:"args,omitempty"`
	Shell   bool              `bson:"shell,omitempty"`
	Cwd     string            `bson:"cwd,omitempty"`
	Env     map[string]string `bson:"env,omitempty"`
}

type transitionDoc struct {
	FromStepID           string            `bson:"from_step_id"`
	ToStepID             string            `bson:"to_step_id"`
	OutputToInputMapping map[string]string `bson:"output_to_input_mapping"`
}

func toDoc(job *models.Job) (jobDoc, error) {
	doc := jobDoc{
		JobID:     job.JobID,
		UserID:    job.UserID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	for _, s := range job.Steps {
		doc.Steps = append(doc.Steps, stepDoc{
			StepID:       s.StepID,
			Name:         s.Name,
			Order:        s.Order,
			Service:      s.Service,
			CommandSpec:  toCommandSpecDoc(s.CommandSpec),
			Inputs:       s.Inputs,
			Outputs:      s.Outputs,
			Status:       s.Status,
			StartedAt:    s.StartedAt,
			FinishedAt:   s.FinishedAt,
			ErrorMessage: s.ErrorMessage,
			LogTail:      s.LogTail,
		})
	}
	for _, t := range job.StepTransitions {
		doc.StepTransitions = append(doc.StepTransitions, transitionDoc{
			FromStepID:           t.FromStepID,
			ToStepID:             t.ToStepID,
			OutputToInputMapping: t.OutputToInputMapping,
		})
	}
	return doc, nil
}

func fromDoc(doc *jobDoc) *models.Job {
	job := &models.Job{
		JobID:     doc.JobID,
		UserID:    doc.UserID,
		Status:    doc.Status,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, s := range doc.Steps {
		job.Steps = append(job.Steps, &models.Step{
			StepID:       s.StepID,
			Name:         s.Name,
			Order:        s.Order,
			Service:      s.Service,
			CommandSpec:  fromCommandSpecDoc(s.CommandSpec),
			Inputs:       s.Inputs,
			Outputs:      s.Outputs,
			Status:       s.Status,
			StartedAt:    s.StartedAt,
			FinishedAt:   s.FinishedAt,
			ErrorMessage: s.ErrorMessage,
			LogTail:      s.LogTail,
		})
	}
	for _, t := range doc.StepTransitions {
		job.StepTransitions = append(job.StepTransitions, models.Transition{
			FromStepID:           t.FromStepID,
			ToStepID:             t.ToStepID,
			OutputToInputMapping: t.OutputToInputMapping,
		})
	}
	return job
}

func toCommandSpecDoc(c models.CommandSpec) commandSpecDoc {
	flags := make(bson.D, 0, len(c.Flags))
	for _, f := range c.Flags {
		flags = append(flags, bson.E{Key: f.Name, Value: f.Value})
	}
	return commandSpecDoc{Program: c.Program, Flags: flags, Args: c.Args, Shell: c.Shell, Cwd: c.Cwd, Env: c.Env}
}

func fromCommandSpecDoc(d commandSpecDoc) models.CommandSpec {
	flags := make([]models.FlagPair, 0, len(d.Flags))
	for _, e := range d.Flags {
		flags = append(flags, models.FlagPair{Name: e.Key, Value: normalizeBSONValue(e.Value)})
	}
	return models.CommandSpec{Program: d.Program, Flags: flags, Args: d.Args, Shell: d.Shell, Cwd: d.Cwd, Env: d.Env}
}

// normalizeBSONValue converts driver-specific arrays (primitive.A) back
// to plain []interface{}, recursively. Other values, embedded documents
// included, are returned as the driver decoded them.
func normalizeBSONValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalizeBSONValue(e)
		}
		return out
	default:
		return v
	}
}
