package config

// Schema is the JSON schema for validating configuration files
const Schema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "type": "object",
    "properties": {
        "log_level": {
            "type": "string",
            "enum": ["debug", "info", "warn", "error"]
        },
        "log_format": {
            "type": "string",
            "enum": ["json", "console"]
        },
        "max_concurrent_fetches": {
            "type": "integer",
            "minimum": 1
        },
        "fetch_timeout_seconds": {
            "type": "integer",
            "minimum": 1
        },
        "store": {
            "type": "object",
            "properties": {
                "type": {
                    "type": "string",
                    "enum": ["s3", "backblaze", "ssh", "local"]
                },
                "access_key": {
                    "type": "string",
                    "minLength": 1
                },
                "secret_key": {
                    "type": "string",
                    "minLength": 1
                },
                "bucket": {
                    "type": "string",
                    "minLength": 1
                },
                "region": {
                    "type": "string"
                },
                "endpoint": {
                    "type": "string"
                },
                "force_path_style": {
                    "type": "boolean"
                },
                "check_bucket": {
                    "type": "boolean"
                },
                "host": {
                    "type": "string"
                },
                "port": {
                    "type": "integer",
                    "minimum": 1,
                    "maximum": 65535
                },
                "key_path": {
                    "type": "string"
                },
                "key_passphrase": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                },
                "max_attempts": {
                    "type": "integer",
                    "minimum": 1
                }
            },
            "required": ["access_key", "secret_key", "bucket"],
            "additionalProperties": false
        },
        "paths": {
            "type": "array",
            "minItems": 1,
            "items": {
                "type": "object",
                "properties": {
                    "name": {
                        "type": "string",
                        "minLength": 1
                    },
                    "key": {
                        "type": "string",
                        "minLength": 1
                    }
                },
                "required": ["name", "key"],
                "additionalProperties": false
            }
        }
    },
    "required": ["store", "paths"],
    "additionalProperties": false
}`
