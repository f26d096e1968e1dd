package config

const (
	// TopicProcess carries one message per job to run through the pipeline.
	TopicProcess = "specwise.process"

	// TopicIndex carries classified line items to embed and store in the vector index.
	TopicIndex = "specwise.index"

	// ChannelWorker is the consumer channel shared by backend workers.
	ChannelWorker = "backend"
)
