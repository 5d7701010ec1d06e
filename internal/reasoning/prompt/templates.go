package prompt

import "fmt"

// managerImpl is the concrete implementation of Manager.
type managerImpl struct{}

// NewManager creates a new prompt manager.
func NewManager() Manager {
	return &managerImpl{}
}

// ─── Instructions ─────────────────────────────────────────────────────────────

const schedulerInstructions = `You are a predictive maintenance expert for industrial manufacturing equipment.

Analyze the historical maintenance data in the briefing and recommend an optimal maintenance schedule based on:
1. Historical failure patterns of the same fault type
2. Risk: time since the last occurrence, fault frequency, downtime cost and work order priority
3. Production impact of the offered maintenance windows
4. Clear, detailed reasoning

RULES:
- Choose the maintenance window from the windows listed in the briefing
- When the briefing says no historical data is available, do not invent statistics
- Always respond with a single JSON object in the format requested`

const partsInstructions = `You are a parts ordering specialist for industrial manufacturing equipment.

Analyze inventory status and decide which parts to order from which supplier, considering:
1. Current inventory levels against reorder points
2. Supplier reliability, lead time and cost
3. Previous orders for this work order
4. Order urgency based on work order priority

RULES:
- Choose the supplier from the suppliers listed in the briefing
- Order every required part that is not available in stock
- Always respond with a single JSON object in the format requested`

// ─── Output schemas ───────────────────────────────────────────────────────────

const scheduleSchema = `## Analysis Required
Respond with one JSON object containing exactly these fields:
- scheduledDate (string, ISO-8601 date-time): when the maintenance should take place
- maintenanceWindow (object): the chosen window, copied from the list above
  - id (string): window ID
  - startTime (string, ISO-8601 date-time)
  - endTime (string, ISO-8601 date-time, after startTime)
  - productionImpact (string, one of: Low, Medium, High)
  - isAvailable (boolean)
- riskScore (number, 0 to 100): failure risk considering priority, failure cycle progress and historical impact
- predictedFailureProbability (number, 0.0 to 1.0)
- recommendedAction (string, one of: IMMEDIATE, URGENT, SCHEDULED, MONITOR)
- reasoning (string): detailed explanation of the decision

` + "```json" + `
{
  "scheduledDate": "<ISO datetime>",
  "maintenanceWindow": {
    "id": "<window ID>",
    "startTime": "<ISO datetime>",
    "endTime": "<ISO datetime>",
    "productionImpact": "<Low|Medium|High>",
    "isAvailable": true
  },
  "riskScore": <0-100>,
  "predictedFailureProbability": <0.0-1.0>,
  "recommendedAction": "<IMMEDIATE|URGENT|SCHEDULED|MONITOR>",
  "reasoning": "<detailed explanation>"
}
` + "```"

const partsSchema = `## Analysis Required
Respond with one JSON object containing exactly these fields:
- supplierId (string): ID of the chosen supplier, copied from the list above
- supplierName (string): name of the chosen supplier
- orderItems (array, at least one item): parts to order
  - partNumber (string)
  - partName (string)
  - quantity (integer, greater than 0)
  - unitCost (number, 0 or more)
  - totalCost (number, 0 or more)
- totalCost (number, 0 or more): total cost of the order
- expectedDeliveryDate (string, ISO-8601 date-time)
- reasoning (string): explanation of supplier and quantity choices (reliability > lead time > cost)

` + "```json" + `
{
  "supplierId": "<supplier ID>",
  "supplierName": "<supplier name>",
  "orderItems": [
    {
      "partNumber": "<part number>",
      "partName": "<part name>",
      "quantity": <number>,
      "unitCost": <decimal>,
      "totalCost": <decimal>
    }
  ],
  "totalCost": <decimal>,
  "expectedDeliveryDate": "<ISO datetime>",
  "reasoning": "<explanation>"
}
` + "```"

// Instructions returns the system instructions for purpose.
func (m *managerImpl) Instructions(purpose Purpose) (string, error) {
	switch purpose {
	case PurposePredictiveMaintenance:
		return schedulerInstructions, nil
	case PurposePartsOrdering:
		return partsInstructions, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
}

// OutputSchema returns the output instruction block for purpose.
func (m *managerImpl) OutputSchema(purpose Purpose) (string, error) {
	switch purpose {
	case PurposePredictiveMaintenance:
		return scheduleSchema, nil
	case PurposePartsOrdering:
		return partsSchema, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
}
