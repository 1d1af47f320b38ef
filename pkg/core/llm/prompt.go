package llm

// ExtractionPrompt asks for the quarter's income statements, one entry per variant, with
// labels and values copied as printed. Scaling, sign handling and period parsing
// happen downstream, so the model is told not to compute anything.
const ExtractionPrompt = `Task:
Read this quarterly or interim financial report of a listed company and transcribe its
statement of profit or loss.

Instructions:
1. Identify the exact legal name of the company.
2. Find every statement of profit or loss in the report. Reports usually carry a
   Group (Consolidated) statement and a Company (standalone) statement. Return each one
   as a separate entry of "statements" and tag it with "variant": "GROUP" or "COMPANY".
   Return at most one statement per variant. When the report prints the quarter (3 months)
   next to a cumulative period (6, 9 or 12 months), use the 3-month columns only.
3. For each statement record:
   - "statement_used": the statement title exactly as printed
   - "page_numbers": the page(s) it appears on
   - "unit_hint": the unit line exactly as printed, e.g. "Rs. '000"
   - "period": the current period end exactly as printed, e.g. "30th June 2023"
   - "comparative_period": the comparative period end exactly as printed
   - "duration": "3 months", "6 months", "9 months" or "12 months"
   - "audit_status": "Audited" or "Unaudited"
4. Transcribe these line items for both the current and the comparative column, keeping
   each label and value exactly as printed (parentheses, commas and dashes included):
   Revenue/Turnover, Cost of Sales, Gross Profit, Operating Profit/Results from operating
   activities, Profit Before Tax, Tax Expense, Profit for the Period, Basic Earnings Per Share.
5. Do not calculate, convert or round anything. If a line is not reported, leave it out.
   Never write 0 for a missing figure.

Output only JSON with this schema:

{
  "company_name": "Company Name PLC",
  "statements": [
    {
      "variant": "GROUP",
      "statement_used": "Consolidated Statement of Profit or Loss",
      "page_numbers": [4],
      "unit_hint": "Rs. '000",
      "period": "30th June 2023",
      "comparative_period": "30th June 2022",
      "duration": "3 months",
      "audit_status": "Unaudited",
      "current": [{"label": "Revenue", "value": "10,500,000"}],
      "comparative": [{"label": "Revenue", "value": "9,800,000"}]
    }
  ]
}
`
