package config

// DetectionConfig represents the aggregation settings
type DetectionConfig struct {
	VerifyLow  float64
	VerifyHigh float64
}

// ReputationConfig represents the reputation store settings
type ReputationConfig struct {
	Type          string
	SQLitePath    string
	MySQLDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// StorageConfig represents the feedback and verification store settings
type StorageConfig struct {
	Type             string
	FeedbackPath     string
	VerificationPath string
}

// VerificationConfig represents the verification lifecycle settings
type VerificationConfig struct {
	ExpiryDays     int
	MaxResendCount int
	BaseURL        string
	SweepFrequency string
	BatchThreshold float64
	BatchLimit     int
}

// ImproverConfig represents the feedback-learning settings
type ImproverConfig struct {
	HighConfidence   float64
	LowConfidence    float64
	LearningRate     float64
	SurpriseBoost    float64
	SurpriseDamp     float64
	MinTrainingItems int
	ConfirmWeight    float64
	RejectWeight     float64
	VerifyWeight     float64
	UncertainWeight  float64
	IgnoreWeight     float64
}

// ServerConfig represents the mail front-end settings
type ServerConfig struct {
	FilterType        string
	ListenAddress     string
	StatusHeader      string
	ScoreHeader       string
	ReasonHeader      string
	SubjectPrefix     string
	ModifySubject     bool
	VerifyOnAmbiguous bool
	PostfixEnabled    bool
	PostfixAddress    string
	PostfixPort       int
}

// DeliveryConfig represents the email delivery settings
type DeliveryConfig struct {
	Type         string
	From         string
	SESRegion    string
	SESAccessKey string
	SESSecretKey string
}

// GetDetection returns the detection configuration
func (c *Config) GetDetection() DetectionConfig {
	return DetectionConfig{
		VerifyLow:  c.GetFloat64("detection.verify_low"),
		VerifyHigh: c.GetFloat64("detection.verify_high"),
	}
}

// GetReputation returns the reputation store configuration
func (c *Config) GetReputation() ReputationConfig {
	return ReputationConfig{
		Type:          c.GetString("reputation.type"),
		SQLitePath:    c.GetString("reputation.sqlite_path"),
		MySQLDSN:      c.GetString("reputation.mysql_dsn"),
		RedisAddr:     c.GetString("reputation.redis_addr"),
		RedisPassword: c.GetString("reputation.redis_password"),
		RedisDB:       c.GetInt("reputation.redis_db"),
	}
}

// GetStorage returns the feedback/verification storage configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:             c.GetString("storage.type"),
		FeedbackPath:     c.GetString("storage.feedback_path"),
		VerificationPath: c.GetString("storage.verification_path"),
	}
}

// GetVerification returns the verification configuration
func (c *Config) GetVerification() VerificationConfig {
	return VerificationConfig{
		ExpiryDays:     c.GetInt("verification.expiry_days"),
		MaxResendCount: c.GetInt("verification.max_resend_count"),
		BaseURL:        c.GetString("verification.base_url"),
		SweepFrequency: c.GetString("verification.sweep_frequency"),
		BatchThreshold: c.GetFloat64("verification.batch_threshold"),
		BatchLimit:     c.GetInt("verification.batch_limit"),
	}
}

// GetImprover returns the improver configuration
func (c *Config) GetImprover() ImproverConfig {
	return ImproverConfig{
		HighConfidence:   c.GetFloat64("improver.high_confidence"),
		LowConfidence:    c.GetFloat64("improver.low_confidence"),
		LearningRate:     c.GetFloat64("improver.learning_rate"),
		SurpriseBoost:    c.GetFloat64("improver.surprise_boost"),
		SurpriseDamp:     c.GetFloat64("improver.surprise_damp"),
		MinTrainingItems: c.GetInt("improver.min_training_items"),
		ConfirmWeight:    c.GetFloat64("improver.weights.confirm"),
		RejectWeight:     c.GetFloat64("improver.weights.reject"),
		VerifyWeight:     c.GetFloat64("improver.weights.verify"),
		UncertainWeight:  c.GetFloat64("improver.weights.uncertain"),
		IgnoreWeight:     c.GetFloat64("improver.weights.ignore"),
	}
}

// GetServer returns the mail front-end configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:        c.GetString("server.filter_type"),
		ListenAddress:     c.GetString("server.listen_address"),
		StatusHeader:      c.GetString("server.headers.status"),
		ScoreHeader:       c.GetString("server.headers.score"),
		ReasonHeader:      c.GetString("server.headers.reason"),
		SubjectPrefix:     c.GetString("server.subject_prefix"),
		ModifySubject:     c.GetBool("server.modify_subject"),
		VerifyOnAmbiguous: c.GetBool("server.verify_on_ambiguous"),
		PostfixEnabled:    c.GetBool("server.postfix.enabled"),
		PostfixAddress:    c.GetString("server.postfix.address"),
		PostfixPort:       c.GetInt("server.postfix.port"),
	}
}

// GetDelivery returns the delivery configuration
func (c *Config) GetDelivery() DeliveryConfig {
	return DeliveryConfig{
		Type:         c.GetString("delivery.type"),
		From:         c.GetString("delivery.from"),
		SESRegion:    c.GetString("delivery.ses.region"),
		SESAccessKey: c.GetString("delivery.ses.access_key"),
		SESSecretKey: c.GetString("delivery.ses.secret_key"),
	}
}
