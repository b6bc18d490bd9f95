package ai

// ExtractPrompt is formatted with: entity types, JSON schema, unit text.
const ExtractPrompt = `
# Task Context
You extract a knowledge graph of **entities** and **relationships** from insurance related text such as advertisements, insurance claims and policy documents.

# Background Data
- **Entity_types:** [%s]

# Detailed Task Description & Rules
## Entity Extraction
1. Identify every entity of the allowed types that is explicitly mentioned in the text.
2. For each entity return:
   - **name:** the name exactly as written in the text. Do not translate or abbreviate.
   - **type:** exactly one of the allowed entity types.
   - **description:** everything the text says about the entity.
   - **confidence:** a number between 0.0 and 1.0 describing how certain the extraction is.
   - **properties:** optional key/value attributes (e.g. "region", "severity", "coverage", "insurer", "date", "amount", "user_id").

## Relationship Extraction
1. Determine the clear, directed relationships between the extracted entities.
2. For each relationship return:
   - **source** and **target:** entity names, written exactly like the entity names above.
   - **type:** a short UPPERCASE token such as LIVES_IN, HAS_RISK, COVERS, OFFERED_BY, OCCURRED_AT.
   - **description:** why the entities are related, based strictly on the text.
   - **confidence:** a number between 0.0 and 1.0.
   - **weight:** optional numeric strength of the relationship.

# Example
**Text:** John lives in Mapo-gu. Mapo-gu has high flood risk.

**Output:**
{
  "entities": [
    {"name": "John", "type": "Person", "description": "John lives in Mapo-gu.", "confidence": 0.9},
    {"name": "Mapo-gu", "type": "Location", "description": "Mapo-gu is a district with high flood risk.", "confidence": 0.95, "properties": {"risk_zone": "flood"}},
    {"name": "Flood", "type": "Risk", "description": "High flood risk in Mapo-gu.", "confidence": 0.85, "properties": {"severity": "high"}}
  ],
  "relationships": [
    {"source": "John", "target": "Mapo-gu", "type": "LIVES_IN", "description": "John lives in Mapo-gu.", "confidence": 0.9},
    {"source": "Mapo-gu", "target": "Flood", "type": "HAS_RISK", "description": "Mapo-gu has high flood risk.", "confidence": 0.85}
  ]
}

# Output Formatting
Return exactly one JSON object that validates against this JSON schema and nothing else:
%s

# Text
%s
`

// ClaimPrompt is formatted with: JSON schema, claim text.
const ClaimPrompt = `
# Task Context
You analyse a single insurance claim and extract the parties and circumstances of the claim as a knowledge graph.

# Detailed Task Description & Rules
- Only use these entity types:
  * **claimant:** the person filing the claim.
  * **location:** where the incident happened or where the claimant lives.
  * **risk:** the peril or damage cause (flood, fire, theft, collision, ...).
  * **coverage:** the insurance product, policy or coverage the claim refers to.
- Put claim specifics such as "date", "amount" or "policy_number" into **properties**.
- Relationships use UPPERCASE tokens such as CLAIMS_UNDER, OCCURRED_AT, CAUSED_BY, LIVES_IN, COVERS.
- Names must be written exactly as in the text.
- Give each entity and relationship a **confidence** between 0.0 and 1.0.

# Output Formatting
Return exactly one JSON object that validates against this JSON schema and nothing else:
%s

# Claim
%s
`
