// Package ragchat provides a conversational backend that grounds LLM answers
// in user documents and turns natural language questions into database
// queries. Documents are split, embedded, and stored in a vector database
// for retrieval; a prompt engine walks a knowledge graph schema to generate
// queries in a target language.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, openai/, gemini/).
package ragchat
