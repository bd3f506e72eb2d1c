package catalog

// courseSchema describes a course document as authored in YAML files.
const courseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "title", "sections"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "level": {"type": "string", "enum": ["BEGINNER", "INTERMEDIATE", "ADVANCED"]},
    "published": {"type": "boolean"},
    "sections": {"type": "array", "items": {"$ref": "#/definitions/section"}}
  },
  "definitions": {
    "section": {
      "type": "object",
      "required": ["id", "order", "units"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "title": {"type": "string"},
        "order": {"type": "integer", "minimum": 1},
        "units": {"type": "array", "items": {"$ref": "#/definitions/unit"}}
      }
    },
    "unit": {
      "type": "object",
      "required": ["id", "order", "chapters"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "title": {"type": "string"},
        "order": {"type": "integer", "minimum": 1},
        "chapters": {"type": "array", "items": {"$ref": "#/definitions/chapter"}}
      }
    },
    "chapter": {
      "type": "object",
      "required": ["id", "order", "content_type"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "title": {"type": "string"},
        "order": {"type": "integer", "minimum": 1},
        "content_type": {"type": "string", "enum": ["text", "video", "audio", "quiz"]},
        "questions": {"type": "array", "items": {"$ref": "#/definitions/question"}}
      }
    },
    "question": {
      "type": "object",
      "required": ["id", "question_type", "correct_answer"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "question_type": {"type": "string", "enum": ["multiple-choice", "fill-blank", "free-text"]},
        "text": {"type": "string"},
        "options": {"type": "array", "items": {"type": "string"}},
        "correct_answer": {"type": "string", "minLength": 1}
      }
    }
  }
}`
