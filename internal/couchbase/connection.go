package couchbase

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// Collection names inside the configured scope. They are expected to exist.
const (
	SymptomCollection        = "symptom"
	DiagnosisCollection      = "diagnosis"
	SpecializationCollection = "diagnosis_specialization"
	CacheCollection          = "patient_info"
	SystemCollection         = "_default"
)

// ConnectionManager handles Couchbase cluster, bucket and scope handles
type ConnectionManager struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	scope      *gocb.Scope
	bucketName string
	scopeName  string
}

// ConnectionString normalizes a configured URL into a couchbase:// connection string.
func ConnectionString(url string) string {
	switch {
	case strings.HasPrefix(url, "couchbase://"), strings.HasPrefix(url, "couchbases://"):
		return url
	case strings.HasPrefix(url, "http://"):
		return "couchbase://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		return "couchbases://" + strings.TrimPrefix(url, "https://")
	default:
		return "couchbase://" + url
	}
}

// NewConnectionManager connects to the cluster and waits for KV and query services.
func NewConnectionManager(url, username, password, bucketName, scopeName string) (*ConnectionManager, error) {
	connectionString := ConnectionString(url)

	log.Info().
		Str("url", connectionString).
		Str("bucket", bucketName).
		Str("scope", scopeName).
		Msg("Creating Couchbase connection")

	cluster, err := gocb.Connect(connectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	bucket := cluster.Bucket(bucketName)
	err = bucket.WaitUntilReady(30*time.Second, &gocb.WaitUntilReadyOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue, gocb.ServiceTypeQuery},
	})
	if err != nil {
		_ = cluster.Close(nil)
		return nil, fmt.Errorf("bucket '%s' is not accessible: %w", bucketName, err)
	}

	log.Info().Msg("Couchbase connection created successfully")

	return &ConnectionManager{
		cluster:    cluster,
		bucket:     bucket,
		scope:      bucket.Scope(scopeName),
		bucketName: bucketName,
		scopeName:  scopeName,
	}, nil
}

// Close closes the Couchbase connection
func (cm *ConnectionManager) Close() error {
	return cm.cluster.Close(nil)
}

// Collection returns a collection of the configured scope
func (cm *ConnectionManager) Collection(name string) *gocb.Collection {
	if name == SystemCollection {
		return cm.bucket.DefaultCollection()
	}
	return cm.scope.Collection(name)
}

// Keyspace returns the fully qualified N1QL keyspace for a collection
func (cm *ConnectionManager) Keyspace(name string) string {
	return keyspace(cm.bucketName, cm.scopeName, name)
}

func keyspace(bucket, scope, collection string) string {
	return fmt.Sprintf("`%s`.`%s`.`%s`", bucket, scope, collection)
}
